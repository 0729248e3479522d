package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer/segment"
)

// Run executes the inspect command.
func (c *InspectCmd) Run(deps *Dependencies) error {
	gen := c.Generation
	if gen == "" {
		var err error
		if gen, err = segment.ReadCurrent(deps.Ctx, deps.Blobs); err != nil {
			return err
		}
	}
	manifest, err := segment.ReadManifest(deps.Ctx, deps.Blobs, gen)
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(deps.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(manifest)
	}

	fmt.Fprintf(deps.Stdout, "generation  %s\n", manifest.Generation)
	fmt.Fprintf(deps.Stdout, "created     %s\n", manifest.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(deps.Stdout, "entries     %d\n", manifest.Entries)
	fmt.Fprintf(deps.Stdout, "next id     %d\n", manifest.NextID)
	fmt.Fprintf(deps.Stdout, "compression %s\n\n", manifest.Compression)

	tw := tabwriter.NewWriter(deps.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SHARD\tENTRIES\tBYTES\tCHECKSUM\tFILTER")
	var total int64
	for _, s := range manifest.Shards {
		filter := "-"
		if s.Filter != nil {
			filter = fmt.Sprintf("%d bits", s.Filter.Cap())
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%016x\t%s\n", s.Key, s.Entries, s.Size, s.Checksum, filter)
		total += s.Size
	}
	fmt.Fprintf(tw, "total\t%d\t%d\t\t\n", manifest.Entries, total)
	return tw.Flush()
}
