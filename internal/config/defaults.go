package config

// Embedding dimensionality of the CLIP ViT-B/32 space.
const DefaultDimensions = 512

// DefaultLimit is the result count when a query does not set one.
const DefaultLimit = 6

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/mediscope/data/db/images.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/mediscope/data/indices/bleve"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "/usr/local/var/mediscope/data/indices/vectors"
	}
	if cfg.Embedding.TextModelPath == "" {
		cfg.Embedding.TextModelPath = "/usr/local/var/mediscope/data/models/clip-vit-b32-textual.onnx"
	}
	if cfg.Embedding.ImageModelPath == "" {
		cfg.Embedding.ImageModelPath = "/usr/local/var/mediscope/data/models/clip-vit-b32-visual.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = DefaultDimensions
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = DefaultLimit
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 50
	}
	if cfg.Search.Threshold == 0 {
		cfg.Search.Threshold = 0.6
	}
	if cfg.Providers.TimeoutSeconds == 0 {
		cfg.Providers.TimeoutSeconds = 5
	}
	if cfg.Providers.DefaultCategory == "" {
		cfg.Providers.DefaultCategory = "healthcare"
	}
	if cfg.Providers.DomainTerms == nil {
		cfg.Providers.DomainTerms = []string{"healthcare", "medical"}
	}
	if cfg.Providers.DomainSuffix == "" {
		cfg.Providers.DomainSuffix = "medical healthcare"
	}
	if cfg.Providers.ImageFallbackKeywords == nil {
		cfg.Providers.ImageFallbackKeywords = []string{
			"xray", "mri", "ct scan", "ultrasound", "medical scan",
			"healthcare", "medical imaging", "radiology",
		}
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".jpg", ".jpeg", ".png", ".webp"}
	}
	if cfg.Watch.Category == "" {
		cfg.Watch.Category = "general"
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
