package artifact

import (
	"fmt"
	"strings"

	"github.com/pgmiso/sc-landingai/internal/model"
)

// Keyspace builds object keys for every artifact a document produces.
// All keys live under a single output prefix:
//
//	<prefix>/<domain>/<document>.md
//	<prefix>/<domain>_grounding/<document>.json
//	<prefix>/<domain>_chunks/<document>/<generation>/<chunkFile>.json
//	<prefix>/<domain>_chunk_images/<document>/<generation>/<chunkFile>__<style>.png
//	<prefix>/<domain>_pages/<document>/<generation>/page_<n>.png
//	<prefix>/<domain>_status/<document>.json
type Keyspace struct {
	prefix string
}

func NewKeyspace(prefix string) Keyspace {
	return Keyspace{prefix: strings.Trim(prefix, "/")}
}

// chunk ids contain ":" and may contain "/" from upstream ids, neither of
// which belongs in an object key segment.
var chunkFileReplacer = strings.NewReplacer("/", "_", ":", ".")

// FileSafeID converts a chunk id into a single key segment. The positional
// tail survives as ".pN.cN" so ids can be rebuilt from listed keys.
func FileSafeID(chunkID string) string {
	return chunkFileReplacer.Replace(chunkID)
}

// ChunkIDFromFile reverses FileSafeID for ids produced by model.FormatChunkID.
// Document names may contain dots, so the segments are anchored from both
// ends: domain first, then generation and the positional tail, with the
// middle rejoined as the document name.
func ChunkIDFromFile(name string) (string, error) {
	parts := strings.Split(name, ".")
	if len(parts) < 5 {
		return "", fmt.Errorf("malformed chunk file name: %s", name)
	}
	n := len(parts)
	id := strings.Join([]string{
		parts[0],
		strings.Join(parts[1:n-3], "."),
		parts[n-3],
		parts[n-2],
		parts[n-1],
	}, ":")
	if _, err := model.ParseChunkID(id); err != nil {
		return "", err
	}
	return id, nil
}

func (k Keyspace) join(parts ...string) string {
	if k.prefix == "" {
		return strings.Join(parts, "/")
	}
	return k.prefix + "/" + strings.Join(parts, "/")
}

func (k Keyspace) Markdown(domain, document string) string {
	return k.join(domain, document+".md")
}

func (k Keyspace) Grounding(domain, document string) string {
	return k.join(domain+"_grounding", document+".json")
}

func (k Keyspace) ChunkRecord(domain, document, generation, chunkID string) string {
	return k.join(domain+"_chunks", document, generation, FileSafeID(chunkID)+".json")
}

// ChunksPrefix lists all chunk records of one generation.
func (k Keyspace) ChunksPrefix(domain, document, generation string) string {
	return k.join(domain+"_chunks", document, generation) + "/"
}

// DomainChunksPrefix lists chunk records of every document in a domain.
func (k Keyspace) DomainChunksPrefix(domain string) string {
	return k.join(domain+"_chunks") + "/"
}

func (k Keyspace) ChunkImage(domain, document, generation, chunkID, style string) string {
	return k.join(domain+"_chunk_images", document, generation, FileSafeID(chunkID)+"__"+style+".png")
}

func (k Keyspace) Page(domain, document, generation string, page int) string {
	return k.join(domain+"_pages", document, generation, fmt.Sprintf("page_%d.png", page))
}

func (k Keyspace) Status(domain, document string) string {
	return k.join(domain+"_status", document+".json")
}

func (k Keyspace) StatusPrefix(domain string) string {
	return k.join(domain+"_status") + "/"
}
