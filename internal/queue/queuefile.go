package queue

import (
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Baseline is one upstream commit a queue's patches are rebased onto. Ref
// and Remote are empty for a baseline that was given as a bare sha or
// HEAD; Remote is set only when Ref resolved through a remote-tracking
// branch, so RefreshBaseline knows to fetch before re-resolving it.
type Baseline struct {
	SHA    string `yaml:"sha"`
	Ref    string `yaml:"ref,omitempty"`
	Remote string `yaml:"remote,omitempty"`
}

// QueueFile is the parsed .git-queue file: the queue's title, an
// optional free-form description, and the ordered list of baselines its
// patches are replayed on top of (merged together when there's more than
// one).
type QueueFile struct {
	Title       string     `yaml:"title,omitempty"`
	Description string     `yaml:"description,omitempty"`
	Baselines   []Baseline `yaml:"baselines,omitempty"`
}

// LoadQueueFile parses a .git-queue file's contents.
func LoadQueueFile(r io.Reader) (*QueueFile, error) {
	var q QueueFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&q); err != nil {
		return nil, err
	}
	return &q, nil
}

// Dump serializes the queue file back out, using block-literal style for
// any multiline string field (just Description, in practice) to match
// how a human would hand-edit it.
func (q *QueueFile) Dump(w io.Writer) error {
	node, err := q.toNode()
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return err
	}
	return enc.Close()
}

// Dumps is Dump rendered to a string.
func (q *QueueFile) Dumps() (string, error) {
	var sb strings.Builder
	if err := q.Dump(&sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// toNode re-encodes q through yaml.Node so multiline scalars can be
// forced into literal block style ("|") the way a hand-maintained
// .git-queue file would read, rather than yaml.v3's default
// double-quoted-with-\n-escapes rendering.
func (q *QueueFile) toNode() (*yaml.Node, error) {
	var raw yaml.Node
	data, err := yaml.Marshal(q)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	literalizeMultiline(&raw)
	return &raw, nil
}

// literalizeMultiline walks a decoded yaml.Node tree and switches any
// scalar node containing an embedded newline to LiteralStyle.
func literalizeMultiline(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode && strings.Contains(n.Value, "\n") {
		n.Style = yaml.LiteralStyle
	}
	for _, c := range n.Content {
		literalizeMultiline(c)
	}
}
