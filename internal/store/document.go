package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Node is one top-level entry of the document tree.
// Object nodes are Redis hashes whose fields hold JSON-encoded children;
// anything else at the root is a primitive kept as a JSON string key.
type Node struct {
	Fields map[string]json.RawMessage
	Value  json.RawMessage
}

// IsObject reports whether the node is a structured object rather than a primitive.
func (n Node) IsObject() bool { return n.Fields != nil }

// Has reports whether an object node carries the given child.
func (n Node) Has(child string) bool {
	_, ok := n.Fields[child]
	return ok
}

// DocumentStore is the real-time database: a two-level JSON tree on top of KV.
// Paths are /<node>/<child>; reads and writes below the child are whole-value.
type DocumentStore struct {
	kv     KV
	prefix string
}

func NewDocumentStore(kv KV, prefix string) *DocumentStore {
	return &DocumentStore{kv: kv, prefix: prefix}
}

func (s *DocumentStore) key(node string) string { return s.prefix + node }

// Root returns a snapshot of every top-level node. An empty store yields an empty map.
func (s *DocumentStore) Root(ctx context.Context) (map[string]Node, error) {
	keys, err := s.kv.ScanKeys(ctx, s.prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan root: %w", err)
	}
	sort.Strings(keys)

	root := make(map[string]Node, len(keys))
	for _, key := range keys {
		name := strings.TrimPrefix(key, s.prefix)
		if name == "" {
			continue
		}
		typ, err := s.kv.Type(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("type of %s: %w", name, err)
		}
		switch typ {
		case "hash":
			raw, err := s.kv.HGetAll(ctx, key)
			if err != nil {
				return nil, fmt.Errorf("read node %s: %w", name, err)
			}
			fields := make(map[string]json.RawMessage, len(raw))
			for f, v := range raw {
				fields[f] = toRaw(v)
			}
			root[name] = Node{Fields: fields}
		case "string":
			v, err := s.kv.Get(ctx, key)
			if err != nil {
				if errors.Is(err, ErrMiss) {
					continue
				}
				return nil, fmt.Errorf("read node %s: %w", name, err)
			}
			root[name] = Node{Value: toRaw(v)}
		default:
			// deleted between scan and read, or not ours
		}
	}
	return root, nil
}

// Child returns the JSON value at /<node>/<child>, or ErrMiss.
func (s *DocumentStore) Child(ctx context.Context, node, child string) (json.RawMessage, error) {
	v, err := s.kv.HGet(ctx, s.key(node), child)
	if err != nil {
		return nil, err
	}
	return toRaw(v), nil
}

// Children returns all children of an object node; a missing node yields an empty map.
func (s *DocumentStore) Children(ctx context.Context, node string) (map[string]json.RawMessage, error) {
	raw, err := s.kv.HGetAll(ctx, s.key(node))
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(raw))
	for f, v := range raw {
		out[f] = toRaw(v)
	}
	return out, nil
}

// SetChild replaces the value at /<node>/<child>.
func (s *DocumentStore) SetChild(ctx context.Context, node, child string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", node, child, err)
	}
	return s.kv.HSet(ctx, s.key(node), child, string(b))
}

// DeleteChild removes /<node>/<child>. Deleting a missing child is not an error.
func (s *DocumentStore) DeleteChild(ctx context.Context, node, child string) error {
	return s.kv.HDel(ctx, s.key(node), child)
}

// Ping checks the backing store is reachable.
func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}

// toRaw keeps valid JSON as-is and quotes anything written by hand as a plain string.
func toRaw(v string) json.RawMessage {
	if json.Valid([]byte(v)) {
		return json.RawMessage(v)
	}
	b, _ := json.Marshal(v)
	return b
}
