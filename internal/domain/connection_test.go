package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConnection_UniqueIDs(t *testing.T) {
	a := NewConnection("10.0.0.1", "tok")
	b := NewConnection("10.0.0.1", "tok")

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "10.0.0.1", a.Addr)
}

func TestValidateRoomName(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr error
	}{
		{name: "plain", in: "podcast1"},
		{name: "unicode and spaces", in: "morning show ☕"},
		{name: "max length", in: strings.Repeat("a", MaxRoomNameLen)},
		{name: "empty", in: "", wantErr: ErrRoomNameEmpty},
		{name: "too long", in: strings.Repeat("a", MaxRoomNameLen+1), wantErr: ErrRoomNameTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room, err := ValidateRoomName(tt.in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, RoomName(tt.in), room)
		})
	}
}
