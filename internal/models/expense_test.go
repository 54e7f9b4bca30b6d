package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseExpenseCategory(t *testing.T) {
	assert.Equal(t, CategoryFuel, ParseExpenseCategory("fuel"))
	assert.Equal(t, CategoryOther, ParseExpenseCategory("other"))
	assert.Equal(t, CategoryOther, ParseExpenseCategory("groceries"))
	assert.Equal(t, CategoryOther, ParseExpenseCategory(""))
}

func TestVoiceToken_ExpiredAt(t *testing.T) {
	expires := time.Date(2026, 3, 1, 12, 15, 0, 0, time.UTC)
	tok := &VoiceToken{ExpiresAt: expires}

	assert.False(t, tok.ExpiredAt(expires.Add(-time.Second)))
	assert.False(t, tok.ExpiredAt(expires))
	assert.True(t, tok.ExpiredAt(expires.Add(time.Millisecond)))
}
