// Package cache implements the key-value store client used to persist
// pipeline output. The store speaks a REST pipeline protocol: each
// operation group is one POST of a JSON command-array list, authorized with
// a bearer token, answered with an array of {result} objects in request
// order. Multi-key writes share one TTL but are not transactional across
// keys; a partial pipeline failure can leave some keys updated and others
// stale, which is accepted for this workload.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Error is returned for non-2xx store responses or malformed store replies.
type Error struct {
	Status int
	Msg    string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("cache store error (status %d): %s", e.Status, e.Msg)
	}
	return fmt.Sprintf("cache store error: %s", e.Msg)
}

// Store is a pipelined client for the REST key-value store.
type Store struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a store client. baseURL is the store root; the pipeline
// endpoint lives at <baseURL>/pipeline.
func New(baseURL, token string) *Store {
	return &Store{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type pipelineResult struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// pipeline issues one POST carrying all commands and returns the per-command
// results in request order.
func (s *Store) pipeline(ctx context.Context, commands [][]interface{}) ([]pipelineResult, error) {
	body, err := json.Marshal(commands)
	if err != nil {
		return nil, &Error{Msg: fmt.Sprintf("encode pipeline: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/pipeline", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Msg: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Msg: fmt.Sprintf("pipeline request failed: %v", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Msg: fmt.Sprintf("read pipeline response: %v", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Status: resp.StatusCode, Msg: string(raw)}
	}

	var results []pipelineResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, &Error{Msg: fmt.Sprintf("parse pipeline response: %v", err)}
	}
	if len(results) != len(commands) {
		return nil, &Error{Msg: fmt.Sprintf("pipeline returned %d results for %d commands", len(results), len(commands))}
	}
	return results, nil
}

// Get returns the value stored at key, or nil when the key is missing.
// Structured values come back decoded; values that were plain strings are
// returned as-is.
func (s *Store) Get(ctx context.Context, key string) (interface{}, error) {
	results, err := s.pipeline(ctx, [][]interface{}{{"GET", key}})
	if err != nil {
		return nil, err
	}
	return decodeValue(results[0].Result), nil
}

// MGet returns values for all keys in one round trip; missing keys yield
// nil at their position.
func (s *Store) MGet(ctx context.Context, keys ...string) ([]interface{}, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	cmd := make([]interface{}, 0, len(keys)+1)
	cmd = append(cmd, "MGET")
	for _, k := range keys {
		cmd = append(cmd, k)
	}
	results, err := s.pipeline(ctx, [][]interface{}{cmd})
	if err != nil {
		return nil, err
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(results[0].Result, &raws); err != nil {
		return nil, &Error{Msg: fmt.Sprintf("parse MGET result: %v", err)}
	}
	values := make([]interface{}, len(raws))
	for i, r := range raws {
		values[i] = decodeValue(r)
	}
	return values, nil
}

// Set writes one key with a TTL in seconds. The value is JSON-serialized.
func (s *Store) Set(ctx context.Context, key string, value interface{}, ttlSeconds int) error {
	cmd, err := setCommand(key, value, ttlSeconds)
	if err != nil {
		return err
	}
	_, err = s.pipeline(ctx, [][]interface{}{cmd})
	return err
}

// MSet writes all pairs in a single pipelined round trip, applying the same
// TTL to every key. Pairs preserve the given order on the wire.
func (s *Store) MSet(ctx context.Context, pairs []Entry, ttlSeconds int) error {
	if len(pairs) == 0 {
		return nil
	}
	commands := make([][]interface{}, 0, len(pairs))
	for _, p := range pairs {
		cmd, err := setCommand(p.Key, p.Value, ttlSeconds)
		if err != nil {
			return err
		}
		commands = append(commands, cmd)
	}
	_, err := s.pipeline(ctx, commands)
	return err
}

// Entry is one key/value pair in a multi-set.
type Entry struct {
	Key   string
	Value interface{}
}

func setCommand(key string, value interface{}, ttlSeconds int) ([]interface{}, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, &Error{Msg: fmt.Sprintf("encode value for %q: %v", key, err)}
	}
	cmd := []interface{}{"SET", key, string(encoded)}
	if ttlSeconds > 0 {
		cmd = append(cmd, "EX", strconv.Itoa(ttlSeconds))
	}
	return cmd, nil
}

// decodeValue unwraps a GET/MGET result. The store returns stored strings
// as JSON strings; the payload inside is attempted as JSON and returned
// verbatim when it does not parse (scalar cached values).
func decodeValue(raw json.RawMessage) interface{} {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var stored string
	if err := json.Unmarshal(raw, &stored); err != nil {
		// Non-string result (e.g. integer reply); decode generically.
		var v interface{}
		if err := json.Unmarshal(raw, &v); err != nil {
			return string(raw)
		}
		return v
	}
	var v interface{}
	if err := json.Unmarshal([]byte(stored), &v); err != nil {
		return stored
	}
	return v
}
