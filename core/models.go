package core

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a stable numeric identifier for domain entities.
// It is derived from content so that repeated runs agree on identity.
type ID uint64

// IDFromKey generates a deterministic ID from an identity key using BLAKE2b
// hashing. Identical keys always produce identical IDs, which keeps upserts
// idempotent across runs.
func IDFromKey(key string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(key))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// WorkItem is a single candidate skill discovered on GitHub, identified by
// repository plus sub-path. It is created by discovery and is immutable
// afterwards.
type WorkItem struct {
	RepoFullName  string    // "owner/repo"
	SkillPath     string    // directory containing the marker file; "" at repo root
	FilePath      string    // full path of the marker file within the repo
	SHA           string    // blob SHA of the marker file
	RepoURL       string    // html URL of the repository
	Stars         int       // repository stargazer count
	PushedAt      time.Time // last push to the repository; zero if unknown
	DefaultBranch string
}

// Key returns the identity key "repo:path" used for checkpointing,
// deduplication against the persisted store, and upsert conflict detection.
func (w WorkItem) Key() string {
	return w.RepoFullName + ":" + w.SkillPath
}

// Slug returns the canonical group key for duplicate/fork suppression:
// the terminal path segment of the skill directory, or the repository name
// when the marker sits at the repo root.
func (w WorkItem) Slug() string {
	if w.SkillPath != "" {
		if i := strings.LastIndex(w.SkillPath, "/"); i >= 0 {
			return w.SkillPath[i+1:]
		}
		return w.SkillPath
	}
	if i := strings.Index(w.RepoFullName, "/"); i >= 0 {
		return w.RepoFullName[i+1:]
	}
	return w.RepoFullName
}

// ID returns the content-derived identifier for this item.
func (w WorkItem) ID() ID {
	return IDFromKey(w.Key())
}

// String renders the ID as fixed-width hex, the form used as the blob
// storage prefix for a skill's resources.
func (id ID) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// DownloadURL returns the browser URL of the marker file.
func (w WorkItem) DownloadURL() string {
	return w.RepoURL + "/blob/" + w.DefaultBranch + "/" + w.FilePath
}

// TreeEntry is one node of a skill's file tree, with paths relative to the
// skill directory.
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // "file" or "dir"
	Size int64  `json:"size,omitempty"`
}

// FileContent is a sibling file fetched alongside the marker document.
type FileContent struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Size    int64  `json:"size"`
}

// FetchedSkill is a WorkItem plus its raw content: the marker document, a
// bounded set of sibling files, the derived file tree, and structural flags.
// It lives only for the duration of the batch that produced it.
type FetchedSkill struct {
	WorkItem

	MarkerContent string
	Files         []FileContent
	FileTree      []TreeEntry

	HasScripts    bool
	HasReferences bool
	HasAssets     bool
	ScriptCount   int
	TotalFiles    int
}

// Severity grades a security finding.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// FindingType categorizes a security finding.
type FindingType string

const (
	FindingPromptInjection      FindingType = "prompt_injection"
	FindingMaliciousCode        FindingType = "malicious_code"
	FindingDataExfiltration     FindingType = "data_exfiltration"
	FindingCredentialExposure   FindingType = "credential_exposure"
	FindingDestructiveOperation FindingType = "destructive_operation"
	FindingOther                FindingType = "other"
)

// SecurityFinding is one LLM-reported risk in a skill's content.
type SecurityFinding struct {
	File        string      `json:"file"`
	Line        int         `json:"line,omitempty"` // 0 when the model gave no line
	Severity    Severity    `json:"severity"`
	Type        FindingType `json:"type"`
	Description string      `json:"description"`
}

// EnrichedSkill is a FetchedSkill plus LLM-derived metadata, the derived
// search/embedding text blobs, and (optionally) an embedding vector.
type EnrichedSkill struct {
	FetchedSkill

	// Frontmatter fields from the marker document.
	Name          string
	Description   string
	License       string
	Compatibility string
	AllowedTools  []string
	Frontmatter   map[string]any
	Body          string

	// LLM-derived fields.
	Tagline     string
	Category    string
	Tags        []string
	KeyFeatures []string
	TechStack   []string
	Findings    []SecurityFinding

	// Derived text blobs.
	SearchText    string
	EmbeddingText string

	// Embedding. Empty when the embedding step is disabled or failed after
	// retries; the record is persisted regardless.
	Vector         []float32
	EmbeddingModel string
}

// IndexEntry is one row of the canonical index loaded from the persisted
// store at the start of discovery.
type IndexEntry struct {
	SHA   string
	Slug  string
	Stars int
}

// SlugOwner records which identity currently owns a canonical group and at
// what popularity.
type SlugOwner struct {
	RepoFullName string
	Stars        int
}

// CanonicalIndex maps identity keys to their persisted state and canonical
// groups to their best-known owner. It is rebuilt once per run and never
// mutated concurrently.
type CanonicalIndex struct {
	ByKey  map[string]IndexEntry
	BySlug map[string]SlugOwner
}

// NewCanonicalIndex returns an empty index.
func NewCanonicalIndex() *CanonicalIndex {
	return &CanonicalIndex{
		ByKey:  make(map[string]IndexEntry),
		BySlug: make(map[string]SlugOwner),
	}
}
