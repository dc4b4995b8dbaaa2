// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

//go:build integration

package store_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aosauth/aosauth/internal/auth"
	"github.com/aosauth/aosauth/internal/store"
)

// setupPostgresEngine starts a PostgreSQL container and applies the schema.
func setupPostgresEngine() (store.Engine, func(), error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("aosauth_test"),
		postgres.WithUsername("aosauth"),
		postgres.WithPassword("aosauth"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		_ = container.Terminate(ctx)
		return nil, nil, err
	}
	_ = migrator.Close()

	engine, err := store.ConnectPostgres(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	cleanup := func() {
		_ = engine.Close()
		_ = container.Terminate(ctx)
	}
	return engine, cleanup, nil
}

// setupRedisEngine starts a Redis container.
func setupRedisEngine() (store.Engine, func(), error) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, nil, err
	}

	addr, err := container.Endpoint(ctx, "")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	engine, err := store.ConnectRedis(ctx, store.RedisOptions{Addr: addr, Prefix: "aosauth_test"})
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	cleanup := func() {
		_ = engine.Close()
		_ = container.Terminate(ctx)
	}
	return engine, cleanup, nil
}

func mustEmail(raw string) auth.Email {
	e, err := auth.ParseEmail(raw)
	Expect(err).NotTo(HaveOccurred())
	return e
}

// describeIdentityStore runs the identity store behaviour against an
// engine produced by setup.
func describeIdentityStore(name string, setup func() (store.Engine, func(), error)) {
	Describe(name, Ordered, func() {
		var (
			engine  store.Engine
			cleanup func()
			s       *store.IdentityStore
			ctx     context.Context
		)

		BeforeAll(func() {
			var err error
			engine, cleanup, err = setup()
			Expect(err).NotTo(HaveOccurred())
			s = store.NewIdentityStore(engine)
			ctx = context.Background()
		})

		AfterAll(func() {
			if cleanup != nil {
				cleanup()
			}
		})

		It("starts ids at one and keeps them increasing", func() {
			first, err := s.GenerateID(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(first).To(BeNumerically(">=", 1))

			second, err := s.GenerateID(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(BeNumerically(">", first))
		})

		It("registers a user once", func() {
			email := mustEmail("a@x.com")
			id, err := s.CreateUser(ctx, email, "$argon2id$first")
			Expect(err).NotTo(HaveOccurred())

			again, err := s.CreateUser(ctx, email, "$argon2id$second")
			Expect(err).NotTo(HaveOccurred())
			Expect(again).To(Equal(id))

			hash, found, err := s.PasswordHashFromEmail(ctx, email)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(hash).To(Equal(auth.PasswordHash("$argon2id$first")))

			back, found, err := s.EmailFromUserID(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(back).To(Equal(email))
		})

		It("resolves concurrent registrations to one id", func() {
			email := mustEmail("race@x.com")
			ids := make([]auth.UserID, 8)
			var wg sync.WaitGroup
			for i := range ids {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					id, err := s.CreateUser(ctx, email, "$argon2id$race")
					Expect(err).NotTo(HaveOccurred())
					ids[i] = id
				}()
			}
			wg.Wait()
			for _, id := range ids {
				Expect(id).To(Equal(ids[0]))
			}
		})

		It("binds, resolves and revokes sessions", func() {
			email := mustEmail("session@x.com")
			id, err := s.CreateUser(ctx, email, "$argon2id$session")
			Expect(err).NotTo(HaveOccurred())

			session, err := auth.NewSession(time.Now(), time.Hour)
			Expect(err).NotTo(HaveOccurred())
			bound, err := s.SetSession(ctx, email, session)
			Expect(err).NotTo(HaveOccurred())
			Expect(bound).To(Equal(id))

			got, found, err := s.UserIDFromSession(ctx, session.Key)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(got).To(Equal(id))

			Expect(s.DeleteSession(ctx, session.Key)).To(Succeed())
			_, found, err = s.UserIDFromSession(ctx, session.Key)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeFalse())
		})

		It("refuses sessions for unknown emails", func() {
			session, err := auth.NewSession(time.Now(), time.Hour)
			Expect(err).NotTo(HaveOccurred())
			_, err = s.SetSession(ctx, mustEmail("ghost@x.com"), session)
			Expect(err).To(MatchError(auth.ErrNoSuchUser))
		})

		It("drops expired sessions at the engine", func() {
			email := mustEmail("short@x.com")
			_, err := s.CreateUser(ctx, email, "$argon2id$short")
			Expect(err).NotTo(HaveOccurred())

			session, err := auth.NewSession(time.Now(), time.Second)
			Expect(err).NotTo(HaveOccurred())
			_, err = s.SetSession(ctx, email, session)
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() bool {
				_, found, err := s.UserIDFromSession(ctx, session.Key)
				Expect(err).NotTo(HaveOccurred())
				return found
			}).WithTimeout(5 * time.Second).WithPolling(200 * time.Millisecond).Should(BeFalse())
		})

		It("answers pings", func() {
			Expect(s.Ping(ctx)).To(Succeed())
		})
	})
}

var _ = Describe("IdentityStore integration", func() {
	describeIdentityStore("on PostgreSQL", setupPostgresEngine)
	describeIdentityStore("on Redis", setupRedisEngine)
})
