package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// The readers accept the historical tennis CSV layout: one header row, then
// one record per line. Rows missing a usable identifier are skipped rather
// than failing the whole file.

func ReadPlayers(r io.Reader, tour string) ([]PlayerRow, error) {
	records, header, err := readAll(r)
	if err != nil {
		return nil, fmt.Errorf("read players csv: %w", err)
	}
	rows := make([]PlayerRow, 0, len(records))
	for _, record := range records {
		id, err := strconv.ParseInt(field(record, header, "player_id"), 10, 64)
		if err != nil {
			continue
		}
		rows = append(rows, PlayerRow{
			PlayerID:  id,
			FirstName: field(record, header, "name_first"),
			LastName:  field(record, header, "name_last"),
			Gender:    tour,
			Hand:      field(record, header, "hand"),
			DOB:       isoDate(field(record, header, "dob")),
			Country:   field(record, header, "ioc"),
			Height:    int32(intField(record, header, "height")),
		})
	}
	return rows, nil
}

func ReadRankings(r io.Reader, tour string) ([]RankingRow, error) {
	records, header, err := readAll(r)
	if err != nil {
		return nil, fmt.Errorf("read rankings csv: %w", err)
	}
	rows := make([]RankingRow, 0, len(records))
	for _, record := range records {
		id, err := strconv.ParseInt(field(record, header, "player"), 10, 64)
		if err != nil {
			continue
		}
		rank := intField(record, header, "rank")
		if rank <= 0 {
			continue
		}
		rows = append(rows, RankingRow{
			PlayerID:    id,
			RankingDate: isoDate(field(record, header, "ranking_date")),
			Rank:        int32(rank),
			Points:      int32(intField(record, header, "points")),
			Gender:      tour,
		})
	}
	return rows, nil
}

func ReadMatches(r io.Reader, tour string) ([]MatchRow, error) {
	records, header, err := readAll(r)
	if err != nil {
		return nil, fmt.Errorf("read matches csv: %w", err)
	}
	rows := make([]MatchRow, 0, len(records))
	for _, record := range records {
		winner, errW := strconv.ParseInt(field(record, header, "winner_id"), 10, 64)
		loser, errL := strconv.ParseInt(field(record, header, "loser_id"), 10, 64)
		if errW != nil || errL != nil {
			continue
		}
		tourneyID := field(record, header, "tourney_id")
		matchNum := field(record, header, "match_num")
		rows = append(rows, MatchRow{
			MatchID:      tourneyID + "-" + matchNum,
			Tour:         tour,
			TourneyID:    tourneyID,
			TourneyName:  field(record, header, "tourney_name"),
			Surface:      field(record, header, "surface"),
			TourneyLevel: field(record, header, "tourney_level"),
			MatchDate:    isoDate(field(record, header, "tourney_date")),
			Round:        field(record, header, "round"),
			BestOf:       int32(intField(record, header, "best_of")),
			WinnerID:     winner,
			LoserID:      loser,
			WinnerRank:   int32(intField(record, header, "winner_rank")),
			LoserRank:    int32(intField(record, header, "loser_rank")),
			WAce:         int32(intField(record, header, "w_ace")),
			LAce:         int32(intField(record, header, "l_ace")),
			Score:        field(record, header, "score"),
		})
	}
	return rows, nil
}

func readAll(r io.Reader) ([][]string, map[string]int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("csv has no header row")
	}
	header := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return records[1:], header, nil
}

func field(record []string, header map[string]int, name string) string {
	idx, ok := header[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func intField(record []string, header map[string]int, name string) int {
	raw := field(record, header, name)
	if raw == "" {
		return 0
	}
	// Some exports carry float-formatted integers ("6.0").
	if dot := strings.IndexByte(raw, '.'); dot >= 0 {
		raw = raw[:dot]
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

// isoDate converts the compact YYYYMMDD form to YYYY-MM-DD; anything else is
// passed through unchanged.
func isoDate(raw string) string {
	if len(raw) != 8 {
		return raw
	}
	for i := 0; i < 8; i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return raw
		}
	}
	return raw[0:4] + "-" + raw[4:6] + "-" + raw[6:8]
}
