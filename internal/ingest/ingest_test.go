package ingest

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/baselinehq/baseline/internal/storage"
)

const playersCSV = `player_id,name_first,name_last,hand,dob,ioc,height,wikidata_id
103819,Roger,Federer,R,19810808,SUI,185,Q1426
104745,Rafael,Nadal,L,19860603,ESP,185,Q10132
bogus,,,,,,,
`

const rankingsCSV = `ranking_date,rank,player,points
20060102,1,103819,6725
20060102,2,104745,4765
20060102,0,999999,0
`

const matchesCSV = `tourney_id,tourney_name,surface,draw_size,tourney_level,tourney_date,match_num,winner_id,loser_id,score,best_of,round,winner_rank,loser_rank,w_ace,l_ace
2006-540,Wimbledon,Grass,128,G,20060626,126,103819,104745,6-0 7-6(5) 6-7(2) 6-3,5,F,1,2,13,5
`

func TestReadPlayersSkipsMalformedRows(t *testing.T) {
	rows, err := ReadPlayers(strings.NewReader(playersCSV), "ATP")
	if err != nil {
		t.Fatalf("ReadPlayers() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].DOB != "1981-08-08" {
		t.Fatalf("DOB = %q", rows[0].DOB)
	}
	if rows[0].Gender != "ATP" {
		t.Fatalf("Gender = %q", rows[0].Gender)
	}
}

func TestReadRankingsDropsZeroRank(t *testing.T) {
	rows, err := ReadRankings(strings.NewReader(rankingsCSV), "ATP")
	if err != nil {
		t.Fatalf("ReadRankings() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].RankingDate != "2006-01-02" || rows[0].Rank != 1 {
		t.Fatalf("row = %+v", rows[0])
	}
}

func TestReadMatchesBuildsMatchID(t *testing.T) {
	rows, err := ReadMatches(strings.NewReader(matchesCSV), "ATP")
	if err != nil {
		t.Fatalf("ReadMatches() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	m := rows[0]
	if m.MatchID != "2006-540-126" || m.MatchDate != "2006-06-26" || m.Round != "F" {
		t.Fatalf("row = %+v", m)
	}
	if m.WAce != 13 || m.LAce != 5 {
		t.Fatalf("aces = %d/%d", m.WAce, m.LAce)
	}
}

type captureStore struct {
	keys []string
}

func (c *captureStore) Put(_ context.Context, key string, _ io.Reader, _ int64, _ storage.PutOptions) (storage.ObjectInfo, error) {
	c.keys = append(c.keys, key)
	return storage.ObjectInfo{Key: key}, nil
}

func (c *captureStore) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, storage.ErrObjectNotFound
}

func (c *captureStore) Stat(context.Context, string) (storage.ObjectInfo, error) {
	return storage.ObjectInfo{}, storage.ErrObjectNotFound
}

func (c *captureStore) Delete(context.Context, string) error {
	return nil
}

func (c *captureStore) List(context.Context, string) ([]storage.ObjectInfo, error) {
	infos := make([]storage.ObjectInfo, 0, len(c.keys))
	for _, key := range c.keys {
		infos = append(infos, storage.ObjectInfo{Key: key})
	}
	return infos, nil
}

func TestRunWritesAndUploadsAllTables(t *testing.T) {
	srcDir := t.TempDir()
	dataDir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(srcDir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
		return path
	}

	store := &captureStore{}
	runner := NewRunner(slog.New(slog.NewTextHandler(io.Discard, nil)), store)
	summary, err := runner.Run(context.Background(), Sources{
		Players:  []Source{{Path: write("players.csv", playersCSV), Tour: "ATP"}},
		Rankings: []Source{{Path: write("rankings.csv", rankingsCSV), Tour: "ATP"}},
		Matches:  []Source{{Path: write("matches.csv", matchesCSV), Tour: "ATP"}},
	}, dataDir)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Players != 2 || summary.Rankings != 2 || summary.Matches != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(store.keys) != 6 {
		t.Fatalf("uploaded keys = %v", store.keys)
	}
	var versioned int
	for _, key := range store.keys {
		if strings.HasPrefix(key, "versions/") {
			versioned++
		}
	}
	if versioned != 3 {
		t.Fatalf("versioned keys = %d in %v", versioned, store.keys)
	}

	data, err := os.ReadFile(filepath.Join(dataDir, "players.parquet"))
	if err != nil {
		t.Fatalf("read parquet: %v", err)
	}
	rows, err := parquet.Read[PlayerRow](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("parquet.Read() error = %v", err)
	}
	if len(rows) != 2 || rows[0].LastName != "Federer" {
		t.Fatalf("rows = %+v", rows)
	}
}
