package iface

// Detection is one center-form box as returned by an inference backend.
type Detection struct {
	X          float64
	Y          float64
	Width      float64
	Height     float64
	ClassID    int
	Class      string
	Confidence float64
}

// ResultSet holds the predictions for a single input image.
type ResultSet struct {
	Predictions []Detection
}

type NamesConf struct {
	IsFile bool
	Data   any
}

type EngineConfig struct {
	Backend string
	ModelID string
	Names   []string
}
