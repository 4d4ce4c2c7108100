// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package deployment

// Merge reconciles a cached plan with one freshly generated from the
// project. Publishes follow the project: those of removed contracts are
// dropped, kept ones are refreshed in place and new ones are appended in
// new batches. Every other cached operation stays where it was.
func Merge(cached, generated *Plan) *Plan {
	if cached == nil {
		return generated
	}
	fresh := make(map[string]*Transaction)
	for _, tx := range generated.Transactions() {
		fresh[tx.PublishedID()] = tx
	}

	merged := &Plan{
		ID:      cached.ID,
		Name:    cached.Name,
		Network: cached.Network,
		Genesis: generated.Genesis,
	}
	seen := make(map[string]bool)
	for _, b := range cached.Plan.Batches {
		kept := &Batch{Epoch: b.Epoch}
		for _, tx := range b.Transactions {
			if !tx.IsPublish() {
				kept.Transactions = append(kept.Transactions, tx)
				continue
			}
			id := tx.PublishedID()
			if g, ok := fresh[id]; ok && !seen[id] {
				kept.Transactions = append(kept.Transactions, g)
				seen[id] = true
			}
		}
		if len(kept.Transactions) > 0 {
			kept.ID = len(merged.Plan.Batches)
			merged.Plan.Batches = append(merged.Plan.Batches, kept)
		}
	}

	var added []*node
	for _, b := range generated.Plan.Batches {
		for _, tx := range b.Transactions {
			if !seen[tx.PublishedID()] {
				added = append(added, &node{tx: tx, epoch: parseEpoch(b.Epoch)})
			}
		}
	}
	merged.Plan.Batches = append(merged.Plan.Batches, batch(added, len(merged.Plan.Batches))...)
	return merged
}

// Sync generates the plan of a project and merges it into the plan cached
// at path, saving the result.
func Sync(path string, generated *Plan) (*Plan, error) {
	var cached *Plan
	if p, err := Load(path); err == nil {
		cached = p
	} else if !isNotExist(err) {
		return nil, err
	}
	merged := Merge(cached, generated)
	if err := merged.Save(path); err != nil {
		return nil, err
	}
	return merged, nil
}
