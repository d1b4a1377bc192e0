package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
)

func TestRedisCache_GetMany(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	cache := NewRedisCacheFromClient(db, "test:")

	mock.ExpectMGet("test:a", "test:b", "test:c").SetVal([]interface{}{"alpha", nil, "gamma"})

	got, err := cache.GetMany(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("GetMany failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 hits, got %d: %v", len(got), got)
	}
	if got["a"] != "alpha" || got["c"] != "gamma" {
		t.Errorf("Unexpected values: %v", got)
	}
	if _, ok := got["b"]; ok {
		t.Error("Missing key should be omitted")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRedisCache_GetMany_Empty(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	cache := NewRedisCacheFromClient(db, "test:")

	got, err := cache.GetMany(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetMany failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no results, got %v", got)
	}

	// No round trip for an empty key set
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRedisCache_GetMany_Error(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	cache := NewRedisCacheFromClient(db, "test:")

	mock.ExpectMGet("test:a").SetErr(errors.New("connection refused"))

	_, err := cache.GetMany(context.Background(), []string{"a"})
	if err == nil {
		t.Fatal("Expected error when Redis is unreachable")
	}
}

func TestRedisCache_SetMany(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	cache := NewRedisCacheFromClient(db, "test:")
	ttl := 2592000 * time.Second

	// Keys are written in sorted order
	mock.ExpectSet("test:a", "alpha", ttl).SetVal("OK")
	mock.ExpectSet("test:b", "beta", ttl).SetVal("OK")

	err := cache.SetMany(context.Background(), map[string]string{"b": "beta", "a": "alpha"}, ttl)
	if err != nil {
		t.Errorf("SetMany failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRedisCache_SetMany_PartialFailure(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	cache := NewRedisCacheFromClient(db, "test:")
	ttl := time.Hour

	mock.ExpectSet("test:a", "alpha", ttl).SetVal("OK")
	mock.ExpectSet("test:b", "beta", ttl).SetErr(errors.New("OOM command not allowed"))

	err := cache.SetMany(context.Background(), map[string]string{"a": "alpha", "b": "beta"}, ttl)
	if err == nil {
		t.Fatal("Expected write error")
	}

	var we *WriteError
	if !errors.As(err, &we) {
		t.Fatalf("Expected *WriteError, got %T", err)
	}
	if len(we.Failed) != 1 {
		t.Fatalf("Expected 1 failed key, got %d: %v", len(we.Failed), we.Failed)
	}
	if _, ok := we.Failed["b"]; !ok {
		t.Errorf("Expected key b to be reported, got %v", we.Failed)
	}
}

func TestRedisCache_KeyPrefix(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	cache := NewRedisCacheFromClient(db, "")

	mock.ExpectMGet("translation:hash123:en:es").SetVal([]interface{}{"translated"})

	got, err := cache.GetMany(context.Background(), []string{"hash123:en:es"})
	if err != nil {
		t.Fatalf("GetMany failed: %v", err)
	}
	if got["hash123:en:es"] != "translated" {
		t.Errorf("Expected 'translated', got %v", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRedisCache_Ping(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	cache := NewRedisCacheFromClient(db, "test:")

	mock.ExpectPing().SetVal("PONG")
	if err := cache.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}

	mock.ExpectPing().SetErr(errors.New("connection refused"))
	if err := cache.Ping(context.Background()); err == nil {
		t.Error("Expected Ping to fail")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRedisConfig_Addr(t *testing.T) {
	tests := []struct {
		cfg  RedisConfig
		want string
	}{
		{RedisConfig{}, "localhost:6379"},
		{RedisConfig{Host: "redis", Port: 6380}, "redis:6380"},
		{RedisConfig{Host: "::1", Port: 6379}, "[::1]:6379"},
	}

	for _, tt := range tests {
		if got := tt.cfg.Addr(); got != tt.want {
			t.Errorf("Addr() = %q, want %q", got, tt.want)
		}
	}
}

func TestWriteError_Error(t *testing.T) {
	single := &WriteError{Failed: map[string]error{"k1": errors.New("boom")}}
	if got := single.Error(); got != "cache write failed for key k1: boom" {
		t.Errorf("Error() = %q", got)
	}

	multi := &WriteError{Failed: map[string]error{"k2": errors.New("x"), "k1": errors.New("y")}}
	if got := multi.Error(); got != "cache write failed for 2 keys: k1, k2" {
		t.Errorf("Error() = %q", got)
	}
}
