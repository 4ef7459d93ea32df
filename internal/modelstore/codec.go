package modelstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/spboyer/ltrank/internal/features"
	"github.com/spboyer/ltrank/internal/models"
	"github.com/spboyer/ltrank/internal/ranker"
)

// ArtifactFormat identifies the envelope layout.
const ArtifactFormat = "ltrank.model/v1"

// Encoders are safe for concurrent EncodeAll/DecodeAll use.
var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	decoder, _ = zstd.NewReader(nil)
)

// Artifact is a decoded model file.
type Artifact struct {
	ID          string
	CreatedAt   time.Time
	Transformer ranker.Transformer
	Schema      features.Schema
}

type envelope struct {
	Format    string          `json:"format"`
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Kind      string          `json:"kind"`
	Schema    features.Schema `json:"schema"`
	Model     []byte          `json:"model"`
}

// Marshal serialises t into a compressed artifact.
func Marshal(t ranker.Transformer) ([]byte, error) {
	model, err := t.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal %s model: %w", t.Kind(), err)
	}
	raw, err := json.Marshal(envelope{
		Format:    ArtifactFormat,
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Kind:      t.Kind(),
		Schema:    t.Schema(),
		Model:     model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal artifact: %w", err)
	}
	return encoder.EncodeAll(raw, nil), nil
}

// Unmarshal decodes an artifact produced by Marshal.
func Unmarshal(data []byte) (*Artifact, error) {
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress artifact: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parse artifact: %w", err)
	}
	if env.Format != ArtifactFormat {
		return nil, fmt.Errorf("%w: unsupported artifact format %q", models.ErrSchemaMismatch, env.Format)
	}
	t, err := ranker.Decode(env.Kind, env.Schema, env.Model)
	if err != nil {
		return nil, fmt.Errorf("decode %s model: %w", env.Kind, err)
	}
	return &Artifact{
		ID:          env.ID,
		CreatedAt:   env.CreatedAt,
		Transformer: t,
		Schema:      env.Schema,
	}, nil
}
