package app

const (
	Name           = "metrogo"
	SourceURL      = "https://git.skobk.in/skobkin/metrogo"
	ConfigFilename = "config.json"
	DBFilename     = "journal.db"
	LogFilename    = "app.log"
	RecentJournal  = 20
)
