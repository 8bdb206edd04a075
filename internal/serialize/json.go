package serialize

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// LayerHash is the JSON rendering of one layer. Field order is part of
// the output contract.
type LayerHash struct {
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Organization string          `json:"organization"`
	Owner        string          `json:"owner"`
	Description  string          `json:"description"`
	DataSources  []string        `json:"data_sources"`
	ImportedAt   *time.Time      `json:"imported_at"`
	Fields       []Field         `json:"fields,omitempty"`
	SampleURL    string          `json:"sample_url,omitempty"`
	UpdateRate   json.RawMessage `json:"update_rate,omitempty"`
	BBox         json.RawMessage `json:"bbox,omitempty"`
}

// Envelope is the top-level JSON response
type Envelope struct {
	Status  string      `json:"status"`
	URL     string      `json:"url"`
	Results []LayerHash `json:"results"`
}

func (s *Serializer) encodeJSON(_ context.Context, docs []LayerDocument, params Params, req Request) ([]byte, error) {
	env := Envelope{
		Status:  "success",
		URL:     req.URL,
		Results: make([]LayerHash, 0, len(docs)),
	}

	for _, doc := range docs {
		h, err := s.LayerHash(doc, params)
		if err != nil {
			return nil, err
		}
		env.Results = append(env.Results, h)
	}

	return json.Marshal(env)
}

// LayerHash builds the JSON rendering of one layer. The validity window
// of non-realtime layers is not part of the output.
func (s *Serializer) LayerHash(doc LayerDocument, params Params) (LayerHash, error) {
	l := doc.Layer

	h := LayerHash{
		Name:         l.Name,
		Category:     l.Category,
		Organization: l.Organization,
		Owner:        l.OwnerEmail,
		Description:  l.Description,
		DataSources:  l.DataSourceValues(),
		SampleURL:    l.SampleURL,
	}
	if !l.ImportedAt.IsZero() {
		importedAt := l.ImportedAt
		h.ImportedAt = &importedAt
	}

	for _, p := range doc.Properties {
		h.Fields = append(h.Fields, PropertyJSON(p))
	}

	// Realtime layers always carry the key, null when no rate is set
	if l.Realtime {
		h.UpdateRate = json.RawMessage("null")
		if l.UpdateRate != nil {
			h.UpdateRate = json.RawMessage(strconv.FormatInt(*l.UpdateRate, 10))
		}
	}

	bbox, err := s.geometry.GeoJSON(l.BBox, params.IncludeGeometry)
	if err != nil {
		return LayerHash{}, fmt.Errorf("layer %s: %w", l.Name, err)
	}
	h.BBox = bbox

	return h, nil
}
