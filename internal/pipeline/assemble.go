package pipeline

// AssembleRecord merges the extracted session, its event count, and its
// transaction enrichment into one output row. The mapping mirrors the
// analytics_sessions schema.
func AssembleRecord(s Session, eventsCount int, en Enrichment) EnrichedSession {
	return EnrichedSession{
		SessionID:                      s.ID,
		ProjectName:                    s.ProjectName,
		UserID:                         s.UserID,
		PageName:                       s.PageName,
		IsActive:                       s.Active,
		SessionStartTime:               s.CreatedAt,
		SessionEndTime:                 s.UpdatedAt,
		LastActivityTime:               s.LastActivityAt,
		EventsCount:                    eventsCount,
		TransactionsSumUSD:             en.SumUSD,
		FirstSuccessfulTransactionTime: en.FirstTxTime,
		FirstSuccessfulTransactionUSD:  en.FirstTxUSD,
	}
}
