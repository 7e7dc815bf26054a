// Command qipu is a thin demonstration binary wiring the store engine
// together: open (or init) a store, build its in-memory index, and run
// a search against it. Argument parsing beyond this is explicitly out of
// scope; a real CLI is a separate, uninvolved collaborator.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mwaldstein/qipu/internal/config"
	"github.com/mwaldstein/qipu/internal/graph"
	"github.com/mwaldstein/qipu/internal/ontology"
	"github.com/mwaldstein/qipu/internal/output"
	"github.com/mwaldstein/qipu/internal/search"
	"github.com/mwaldstein/qipu/internal/store"
	"github.com/mwaldstein/qipu/internal/textutil"
	"github.com/mwaldstein/qipu/internal/traversal"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "qipu:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: qipu <store-path> [query]")
	}
	path := args[0]

	s, err := store.Open(path)
	if err != nil {
		s, err = store.Init(path, store.Options{})
		if err != nil {
			return err
		}
	}
	defer s.Close()

	if _, err := s.RepairIfInconsistent(); err != nil {
		return err
	}

	tok := textutil.NewTokenizer(s.Config.Stemming)
	idx, err := graph.Build(s, tok)
	if err != nil {
		return err
	}

	if len(args) < 2 {
		fmt.Printf("store at %s: %d notes indexed\n", s.RootPath, idx.TotalDocs)
		return nil
	}

	ont := ontology.FromConfig(ontologyConfig(s.Config))
	results := search.Search(idx, tok, args[1], search.Filters{Limit: 20}, s.Config.TagAliases, time.Now())

	views := make([]output.NoteView, 0, len(results))
	for _, r := range results {
		meta := idx.Metadata[r.ID]
		if meta == nil {
			continue
		}
		views = append(views, output.NoteView{
			ID: meta.ID, Title: meta.Title, Type: meta.Type, Tags: meta.Tags,
			Value: meta.Value, Created: meta.Created, Updated: meta.Updated, RankKey: r.Score,
		})
	}
	output.SortNotes(views)
	fmt.Print(output.HumanEncode(views, 0))

	if len(results) > 0 {
		near := traversal.Traverse(idx, ont, results[0].ID, traversal.Options{
			Direction: traversal.DirBoth,
			MaxHops:   2,
			MaxNodes:  25,
		})
		fmt.Printf("\n%d note(s) within 2 hops of %s\n", len(near.Visited), results[0].ID)
	}
	return nil
}

func ontologyConfig(cfg config.Config) ontology.Config {
	noteTypes := make(map[string]ontology.NoteTypeDef, len(cfg.Ontology.NoteTypes))
	for name, def := range cfg.Ontology.NoteTypes {
		noteTypes[name] = ontology.NoteTypeDef{Description: def.Description, Usage: def.Usage}
	}
	linkTypes := make(map[string]ontology.LinkTypeDef, len(cfg.Ontology.LinkTypes))
	for name, def := range cfg.Ontology.LinkTypes {
		linkTypes[name] = ontology.LinkTypeDef{Inverse: def.Inverse, Description: def.Description, Cost: def.Cost, Usage: def.Usage}
	}
	graphTypes := make(map[string]ontology.LinkTypeDef, len(cfg.GraphTypes))
	for name, def := range cfg.GraphTypes {
		graphTypes[name] = ontology.LinkTypeDef{Inverse: def.Inverse, Description: def.Description, Cost: def.Cost, Usage: def.Usage}
	}
	return ontology.Config{
		Mode:       ontology.Mode(cfg.Ontology.Mode),
		NoteTypes:  noteTypes,
		LinkTypes:  linkTypes,
		GraphTypes: graphTypes,
	}
}
