package ingest

// Parquet row shapes for the three dataset tables. Field tags match the
// column names the rest of the pipeline queries through DuckDB views.

type PlayerRow struct {
	PlayerID  int64  `parquet:"player_id"`
	FirstName string `parquet:"first_name"`
	LastName  string `parquet:"last_name"`
	Gender    string `parquet:"gender"`
	Hand      string `parquet:"hand"`
	DOB       string `parquet:"dob"`
	Country   string `parquet:"country"`
	Height    int32  `parquet:"height"`
}

type RankingRow struct {
	PlayerID    int64  `parquet:"player_id"`
	RankingDate string `parquet:"ranking_date"`
	Rank        int32  `parquet:"rank"`
	Points      int32  `parquet:"points"`
	Gender      string `parquet:"gender"`
}

type MatchRow struct {
	MatchID      string `parquet:"match_id"`
	Tour         string `parquet:"tour"`
	TourneyID    string `parquet:"tourney_id"`
	TourneyName  string `parquet:"tourney_name"`
	Surface      string `parquet:"surface"`
	TourneyLevel string `parquet:"tourney_level"`
	MatchDate    string `parquet:"match_date"`
	Round        string `parquet:"round"`
	BestOf       int32  `parquet:"best_of"`
	WinnerID     int64  `parquet:"winner_id"`
	LoserID      int64  `parquet:"loser_id"`
	WinnerRank   int32  `parquet:"winner_rank"`
	LoserRank    int32  `parquet:"loser_rank"`
	WAce         int32  `parquet:"w_ace"`
	LAce         int32  `parquet:"l_ace"`
	Score        string `parquet:"score"`
}
