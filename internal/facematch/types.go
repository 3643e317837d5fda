// Package facematch identifies enrolled people from grayscale face crops.
// Crops are encoded as LBPH descriptors and matched against the nearest enrolled template.
package facematch

import "image"

// TrainingSample is one labeled face crop.
type TrainingSample struct {
	UID  int64
	Name string
	Crop *image.Gray
}

// Prediction is the nearest enrolled template for a crop.
type Prediction struct {
	UID      int64
	Name     string  // empty when the uid has no name in the lookup
	Distance float64 // chi-square distance, lower is closer
}

// Stats describes the current model.
type Stats struct {
	Samples    int  `json:"samples"`
	Identities int  `json:"identities"`
	Indexed    bool `json:"indexed"` // true once the HNSW candidate index is in use
}
