// Package directory fetches per-service form schemas from the
// service/resource directory. Schemas are treated as opaque data beyond
// field-level rules; a meta-schema guard rejects structurally broken
// documents before they reach the interpreter.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	stderrors "ticketing-workflow/internal/common/errors"
	"ticketing-workflow/internal/common/httpclient"
	"ticketing-workflow/internal/common/logger"
	"ticketing-workflow/internal/schema"

	"github.com/redis/go-redis/v9"
	"github.com/xeipuuv/gojsonschema"
)

// Service is one service category as served by the directory: its form
// schema plus the payload prefix its fields nest under.
type Service struct {
	Slug       string           `json:"slug"`
	Name       string           `json:"name"`
	Prefix     string           `json:"prefix"`
	FormSchema schema.FieldList `json:"form_schema"`
}

// metaSchema validates the wire shape of a directory response before the
// field-level rules run. Actions and schemas from the workflow authority
// go through the same field rules but are never cached.
const metaSchema = `{
	"type": "object",
	"required": ["slug", "form_schema"],
	"properties": {
		"slug": {"type": "string", "minLength": 1},
		"name": {"type": "string"},
		"prefix": {"type": "string"},
		"form_schema": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "type"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"label": {"type": "string"},
					"type": {"enum": ["text", "number", "textarea", "boolean", "date", "select"]},
					"required": {"type": "boolean"},
					"options": {"type": "array", "items": {"type": "string"}},
					"placeholder": {"type": "string"}
				}
			}
		}
	}
}`

// Client is the directory REST client with an optional Redis read-through
// cache. Directory schemas are versioned per service, so caching them is
// safe; the TTL bounds how long a republished schema takes to show up.
type Client struct {
	baseURL  string
	http     *httpclient.Client
	redis    *redis.Client
	cacheTTL time.Duration
	logger   logger.Logger
}

func NewClient(baseURL string, hc *httpclient.Client, rdb *redis.Client, cacheTTL time.Duration, log logger.Logger) *Client {
	return &Client{
		baseURL:  baseURL,
		http:     hc,
		redis:    rdb,
		cacheTTL: cacheTTL,
		logger:   log.WithFields(map[string]interface{}{"component": "directory-client"}),
	}
}

// Service fetches one service category by slug.
func (c *Client) Service(ctx context.Context, slug string) (*Service, error) {
	cacheKey := "svc-schema:" + slug

	if c.redis != nil {
		if cached, err := c.redis.Get(ctx, cacheKey).Result(); err == nil {
			var svc Service
			if err := json.Unmarshal([]byte(cached), &svc); err == nil {
				return &svc, nil
			}
			// Corrupt cache entry: drop it and fall through to a fetch.
			c.redis.Del(ctx, cacheKey)
		}
	}

	endpoint := fmt.Sprintf("%s/services/%s", c.baseURL, url.PathEscape(slug))

	var raw json.RawMessage
	if err := c.http.GetJSON(ctx, endpoint, &raw); err != nil {
		return nil, stderrors.NewDirectoryUnavailableError(err)
	}

	svc, err := decodeService(raw)
	if err != nil {
		return nil, err
	}

	if c.redis != nil && c.cacheTTL > 0 {
		if data, err := json.Marshal(svc); err == nil {
			if err := c.redis.Set(ctx, cacheKey, data, c.cacheTTL).Err(); err != nil {
				c.logger.Warn("schema cache write failed", map[string]interface{}{
					"slug":  slug,
					"error": err.Error(),
				})
			}
		}
	}

	return svc, nil
}

// decodeService validates the raw document against the meta-schema, then
// decodes it and runs the field-level structural check.
func decodeService(raw json.RawMessage) (*Service, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(metaSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return nil, stderrors.NewSchemaMisconfiguredError(err.Error())
	}
	if !result.Valid() {
		details := ""
		for _, desc := range result.Errors() {
			if details != "" {
				details += "; "
			}
			details += desc.String()
		}
		return nil, stderrors.NewSchemaMisconfiguredError(details)
	}

	var svc Service
	if err := json.Unmarshal(raw, &svc); err != nil {
		return nil, stderrors.NewSchemaMisconfiguredError(err.Error())
	}

	if err := svc.FormSchema.Check(); err != nil {
		return nil, stderrors.NewSchemaMisconfiguredError(err.Error())
	}

	return &svc, nil
}
