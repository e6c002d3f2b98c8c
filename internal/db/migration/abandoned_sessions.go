package migration

// OutcomeAbandoned marks sessions whose process died without recording
// how they ended.
const OutcomeAbandoned = "abandoned"

// closeAbandonedSessions closes every session left open by an earlier
// run. It only runs when the database is opened, before any new session
// has begun.
func closeAbandonedSessions(m *Migration) error {
	res := m.DB.Exec(
		`UPDATE proof_sessions SET outcome = ?, ended_at = started_at WHERE ended_at = 0 AND outcome = ''`,
		OutcomeAbandoned,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		m.Log("closed abandoned sessions: ", res.RowsAffected)
	}
	return nil
}
