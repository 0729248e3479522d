package main

import (
	"encoding/json"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/searcher/reload"
)

// Run executes the query command against a stored generation.
func (c *QueryCmd) Run(deps *Dependencies) error {
	mgr := reload.NewManager(deps.Blobs, deps.Config.Storage.ReadAttempts, deps.Metrics)
	gen, err := mgr.Load(deps.Ctx, c.Generation)
	if err != nil {
		return err
	}
	res, err := gen.Executor.Search(deps.Ctx, c.Query, c.Limit)
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(deps.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if res.Total == 0 {
		fmt.Fprintf(deps.Stdout, "no symbols match %q\n", c.Query)
		return nil
	}
	for _, r := range res.Results {
		fmt.Fprintf(deps.Stdout, "%s  [%s #%d]\n", r.DisplayName, r.Kind, r.ID)
		for _, loc := range r.MatchedLocations {
			scope := loc.QualifiedScope()
			if scope == "" {
				scope = "(global)"
			}
			fmt.Fprintf(deps.Stdout, "    %s  %s%s\n", loc.AnchorRef, scope, loc.SignatureHint)
		}
	}
	if res.Truncated {
		fmt.Fprintf(deps.Stdout, "showing %d of %d symbols\n", len(res.Results), res.Total)
	}
	return nil
}
