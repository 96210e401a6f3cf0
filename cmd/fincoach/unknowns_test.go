package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/fincoach/internal/common"
	"github.com/Veraticus/fincoach/internal/fallback"
	"github.com/Veraticus/fincoach/internal/sheets"
	"github.com/Veraticus/fincoach/internal/testutil"
)

func TestMatchUnknownID(t *testing.T) {
	records := []fallback.UnknownRecord{
		{ID: "a1b2c3d4-0000"},
		{ID: "a1b2ffff-0000"},
		{ID: "9999aaaa-0000"},
	}

	tests := []struct {
		name    string
		prefix  string
		want    string
		wantErr error
	}{
		{name: "full id", prefix: "9999aaaa-0000", want: "9999aaaa-0000"},
		{name: "unique prefix", prefix: "a1b2c", want: "a1b2c3d4-0000"},
		{name: "ambiguous prefix", prefix: "a1b2", wantErr: common.ErrInvalidConfig},
		{name: "no match", prefix: "zzz", wantErr: common.ErrNotFound},
		{name: "empty", prefix: "  ", wantErr: common.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := matchUnknownID(records, tt.prefix)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenOnly(t *testing.T) {
	records := []fallback.UnknownRecord{{ID: "a"}, {ID: "b", Resolved: true}, {ID: "c"}}
	open := openOnly(records)
	require.Len(t, open, 2)
	assert.Equal(t, "a", open[0].ID)
	assert.Equal(t, "c", open[1].ID)
	assert.Len(t, records, 3)
}

func TestMatchUnknownIDAgainstStore(t *testing.T) {
	at := testutil.DefaultAsOf
	db := testutil.SetupTestDBWithOptions(t, testutil.TestDBOptions{
		Unknowns: []fallback.UnknownRecord{
			{ID: "5f0c1e2a-aaaa", Utterance: "what is my credit score", Frequency: 3, FirstSeen: at, LastSeen: at},
			{ID: "77d41b09-bbbb", Utterance: "can I afford a boat", Frequency: 1, FirstSeen: at, LastSeen: at, Resolved: true},
		},
	})

	records, err := db.Storage.ListUnknowns(context.Background())
	require.NoError(t, err)
	require.Len(t, openOnly(records), 1)

	id, err := matchUnknownID(records, "77d4")
	require.NoError(t, err)
	assert.Equal(t, "can I afford a boat", db.MustGetUnknown(id).Utterance)
}

func TestExportUnknowns(t *testing.T) {
	records := []fallback.UnknownRecord{{ID: "a"}, {ID: "b", Resolved: true}}
	now := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)

	mock := &sheets.MockExporter{}
	n, err := exportUnknowns(context.Background(), mock, records, false, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, now, mock.LastTime)
	require.Len(t, mock.LastRecords, 1)
	assert.Equal(t, "a", mock.LastRecords[0].ID)

	n, err = exportUnknowns(context.Background(), mock, records, true, now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, mock.Calls)

	failing := &sheets.MockExporter{Err: errors.New("quota exceeded")}
	_, err = exportUnknowns(context.Background(), failing, records, true, now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}
