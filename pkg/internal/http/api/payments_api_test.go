package api

import (
	"testing"

	"github.com/afyalink/telecare/pkg/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestCanManageTransaction(t *testing.T) {
	trx := models.Transaction{PayerID: "patient-1"}

	assert.True(t, canManageTransaction(Principal{ID: "patient-1"}, trx))
	assert.True(t, canManageTransaction(Principal{ID: "ops-1", Role: "admin"}, trx))

	// A completed payment is not a public object; strangers cannot
	// verify or cancel it on someone else's behalf.
	assert.False(t, canManageTransaction(Principal{ID: "patient-2"}, trx))
	assert.False(t, canManageTransaction(Principal{ID: "patient-2", Role: "doctor"}, trx))
}
