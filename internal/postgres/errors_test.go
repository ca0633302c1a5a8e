package postgres_test

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/SergeyBogomolovv/checkout-service/internal/postgres"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	testCases := []struct {
		name      string
		err       error
		want      postgres.ErrorClass
		retryable bool
	}{
		{name: "nil", err: nil, want: postgres.ErrorClassPermanent},
		{name: "no rows", err: sql.ErrNoRows, want: postgres.ErrorClassPermanent},
		{name: "serialization", err: &pq.Error{Code: "40001"}, want: postgres.ErrorClassSerialization, retryable: true},
		{name: "deadlock wrapped", err: fmt.Errorf("update: %w", &pq.Error{Code: "40P01"}), want: postgres.ErrorClassDeadlock, retryable: true},
		{name: "lock not available", err: &pq.Error{Code: "55P03"}, want: postgres.ErrorClassTransient, retryable: true},
		{name: "unique violation", err: &pq.Error{Code: "23505"}, want: postgres.ErrorClassPermanent},
		{name: "bad conn", err: driver.ErrBadConn, want: postgres.ErrorClassTransient, retryable: true},
		{name: "unknown", err: errors.New("boom"), want: postgres.ErrorClassPermanent},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, postgres.ClassifyError(tc.err))
			assert.Equal(t, tc.retryable, postgres.IsRetryable(tc.err))
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, postgres.IsUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	assert.False(t, postgres.IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, postgres.IsUniqueViolation(errors.New("boom")))
}
