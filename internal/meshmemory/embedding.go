package meshmemory

import (
	"encoding/json"
	"math"
)

// EmbeddingVector is a non-empty, immutable vector of finite float32 values
// produced by a model adapter's embedding call.
type EmbeddingVector struct {
	values []float32
}

// NewEmbeddingVector validates and wraps values. The slice is copied so later
// mutation by the caller cannot affect the vector.
func NewEmbeddingVector(values []float32) (EmbeddingVector, error) {
	if len(values) == 0 {
		return EmbeddingVector{}, &InvalidRecordError{Reason: "embedding vector cannot be empty"}
	}
	for _, v := range values {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return EmbeddingVector{}, &InvalidRecordError{Reason: "embedding vector must contain only finite values"}
		}
	}
	out := make([]float32, len(values))
	copy(out, values)
	return EmbeddingVector{values: out}, nil
}

// Values returns a defensive copy of the embedding's components.
func (e EmbeddingVector) Values() []float32 {
	out := make([]float32, len(e.values))
	copy(out, e.values)
	return out
}

// Len returns the embedding's dimensionality.
func (e EmbeddingVector) Len() int { return len(e.values) }

// dot returns the dot product of e and other. Callers must ensure equal
// length; mismatched lengths return 0.
func (e EmbeddingVector) dot(other EmbeddingVector) float32 {
	if len(e.values) != len(other.values) {
		return 0
	}
	var sum float32
	for i, v := range e.values {
		sum += v * other.values[i]
	}
	return sum
}

// magnitude returns the Euclidean norm of the vector.
func (e EmbeddingVector) magnitude() float32 {
	var sumSquares float64
	for _, v := range e.values {
		sumSquares += float64(v) * float64(v)
	}
	return float32(math.Sqrt(sumSquares))
}

// CosineSimilarity returns the cosine similarity between e and other, or 0
// when either vector has zero magnitude.
func (e EmbeddingVector) CosineSimilarity(other EmbeddingVector) float32 {
	denominator := e.magnitude() * other.magnitude()
	if denominator == 0 {
		return 0
	}
	return e.dot(other) / denominator
}

// MarshalJSON implements json.Marshaler, encoding the embedding as a plain
// array of numbers.
func (e EmbeddingVector) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.values)
}

// UnmarshalJSON implements json.Unmarshaler, validating the decoded values
// the same way NewEmbeddingVector does.
func (e *EmbeddingVector) UnmarshalJSON(data []byte) error {
	var values []float32
	if err := json.Unmarshal(data, &values); err != nil {
		return &SerializationError{Source: err}
	}
	vec, err := NewEmbeddingVector(values)
	if err != nil {
		return err
	}
	*e = vec
	return nil
}
