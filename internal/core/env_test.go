package core

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type published struct {
	topic   string
	message interface{}
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []published
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, message interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, published{topic: topic, message: message})
	return nil
}

func (p *fakePublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	topics := make([]string, 0, len(p.messages))
	for _, m := range p.messages {
		topics = append(topics, m.topic)
	}
	return topics
}

type memoryCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string]string)}
}

func (c *memoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return "", errors.New("cache miss")
	}
	return v, nil
}

func (c *memoryCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memoryCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

type testEnv struct {
	ctx       context.Context
	db        *gorm.DB
	store     Repository
	services  *ServiceRegistry
	publisher *fakePublisher
	cache     *memoryCache
	clock     time.Time
}

func (e *testEnv) now() time.Time { return e.clock }

// advance moves the service clock forward.
func (e *testEnv) advance(d time.Duration) { e.clock = e.clock.Add(d) }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// Every connection to ":memory:" is its own database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(Models()...))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	env := &testEnv{
		ctx:       context.Background(),
		db:        db,
		store:     NewRepository(db),
		publisher: &fakePublisher{},
		cache:     newMemoryCache(),
		clock:     time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC),
	}
	env.services = NewServiceRegistry(Dependencies{
		Store:     env.store,
		Cache:     env.cache,
		Publisher: env.publisher,
		Logger:    logger,
		Settings: Settings{
			CommissionRate:         0.10,
			CancellationWindowDays: 7,
			Tenancy: TenancySettings{
				DefaultRentDueDay:      1,
				DefaultGracePeriodDays: 5,
				StatsCacheTTL:          time.Minute,
				DefaultCountryCode:     "255",
			},
			TokenTTL:   24 * time.Hour,
			BcryptCost: bcrypt.MinCost,
		},
		Now: env.now,
	})
	return env
}

func (e *testEnv) createUser(t *testing.T, role Role, name string) (*User, *Session) {
	t.Helper()
	user := &User{
		Email:        uuid.NewString() + "@example.com",
		FullName:     name,
		Phone:        "0712 345 678",
		Role:         role,
		PasswordHash: "not-a-real-hash",
	}
	require.NoError(t, e.store.CreateUser(e.ctx, user))
	return user, &Session{UserID: user.ID, Email: user.Email, FullName: user.FullName, Role: role}
}

func (e *testEnv) createProperty(t *testing.T, hostID uuid.UUID, rent string, status PropertyStatus) *Property {
	t.Helper()
	property := &Property{
		HostID:      hostID,
		Title:       "Two bedroom flat",
		City:        "Dar es Salaam",
		MonthlyRent: decimal.RequireFromString(rent),
		Status:      status,
	}
	require.NoError(t, e.store.CreateProperty(e.ctx, property))
	return property
}

func (e *testEnv) outboxTopics(t *testing.T) []string {
	t.Helper()
	var events []*OutboxEvent
	require.NoError(t, e.db.Order("created_at ASC").Find(&events).Error)
	topics := make([]string, 0, len(events))
	for _, ev := range events {
		topics = append(topics, ev.Topic)
	}
	return topics
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var be BusinessError
	require.True(t, errors.As(err, &be), "expected business error %s, got %v", code, err)
	require.Equal(t, code, be.Code)
}
