package helpers

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/oneclick/wa-gateway/internal/repository"
	"github.com/oneclick/wa-gateway/pkg/pg"
	"github.com/oneclick/wa-gateway/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.ClientEntity{},
		&repository.WalletEntity{},
		&repository.LedgerTransactionEntity{},
		&repository.PricingRuleEntity{},
		&repository.MessageLogEntity{},
		&repository.CampaignEntity{},
		&repository.MessageTemplateEntity{},
	)
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Unique connection name per test avoids the global adapter cache.
	connName := fmt.Sprintf("%s-%d", t.Name(), time.Now().UnixNano())
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

// CreateTestClient inserts a client with working transport credentials and
// a wallet holding the given balance.
func CreateTestClient(t *testing.T, db *pg.DB, id int64, balance decimal.Decimal) *repository.ClientEntity {
	ctx := context.Background()
	client := &repository.ClientEntity{
		ID:            id,
		Name:          fmt.Sprintf("Test Client %d", id),
		WabaID:        fmt.Sprintf("waba-%d", id),
		PhoneNumberID: fmt.Sprintf("phone-%d", id),
		AccessToken:   fmt.Sprintf("token-%d", id),
		Currency:      "USD",
	}
	err := db.Write(ctx).Create(client).Error
	require.NoError(t, err)

	wallet := &repository.WalletEntity{
		ClientID: id,
		Balance:  balance,
		Currency: "USD",
	}
	err = db.Write(ctx).Create(wallet).Error
	require.NoError(t, err)

	return client
}

// CreateTestTemplate inserts one approved template for the client.
func CreateTestTemplate(t *testing.T, db *pg.DB, clientID int64, name string, variables string) *repository.MessageTemplateEntity {
	ctx := context.Background()
	tpl := &repository.MessageTemplateEntity{
		ClientID:      clientID,
		Name:          name,
		LanguageCode:  "en_US",
		VariablesJSON: variables,
		Status:        "APPROVED_BY_META",
	}
	err := db.Write(ctx).Create(tpl).Error
	require.NoError(t, err)
	return tpl
}

func CreateTestCampaign(t *testing.T, db *pg.DB, clientID, templateID int64, audience string) *repository.CampaignEntity {
	ctx := context.Background()
	c := &repository.CampaignEntity{
		ClientID:     clientID,
		TemplateID:   templateID,
		Name:         "Test Campaign",
		AudienceJSON: audience,
		Status:       "PENDING_SEND",
	}
	err := db.Write(ctx).Create(c).Error
	require.NoError(t, err)
	return c
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
