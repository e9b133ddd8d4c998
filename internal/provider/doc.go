// Package provider holds what the upstream HTTP collaborators share: the
// retrying JSON client, the transient error marker, and the schedule types the
// game-time providers return.
//
// Subpackages:
//   - mfl: MyFantasyLeague export API (transactions, players, franchises)
//   - espn: ESPN public scoreboard (primary schedule, unmetered)
//   - oddsapi: The Odds API events (fallback schedule, metered)
//   - teams: NFL team name to MFL code table
package provider
