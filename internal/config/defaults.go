package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/bookshelf/data/db/books.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/bookshelf/data/indices/bleve"
	}
	if cfg.Model.InputName == "" {
		cfg.Model.InputName = "input"
	}
	if cfg.Model.OutputName == "" {
		cfg.Model.OutputName = "output"
	}
	if cfg.Model.InputWidth == 0 {
		cfg.Model.InputWidth = 2003
	}
	if cfg.Model.OutputWidth == 0 {
		cfg.Model.OutputWidth = 567
	}
	if cfg.Model.DirectIndexSlots == 0 {
		cfg.Model.DirectIndexSlots = 1000
	}
	if cfg.Model.TopK == 0 {
		cfg.Model.TopK = 20
	}
	if cfg.Model.ScorerTimeout == "" {
		cfg.Model.ScorerTimeout = "2s"
	}
	if cfg.Model.BreakerFailures == 0 {
		cfg.Model.BreakerFailures = 5
	}
	if cfg.Model.BreakerCooldown == "" {
		cfg.Model.BreakerCooldown = "30s"
	}
	if cfg.Recommend.DefaultLimit == 0 {
		cfg.Recommend.DefaultLimit = 8
	}
	if cfg.Recommend.MaxLimit == 0 {
		cfg.Recommend.MaxLimit = 50
	}
	if cfg.Catalog.Extensions == nil {
		cfg.Catalog.Extensions = []string{".json", ".csv", ".xlsx"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Catalog.Directories) > 0 && cfg.Catalog.Recursive == nil {
		t := true
		cfg.Catalog.Recursive = &t
	}
}
