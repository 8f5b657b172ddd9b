package types

import (
	"encoding/json"
	"fmt"
	"sort"
)

func (t *Tree) MarshalJSON() ([]byte, error) {
	return json.MarshalIndent(&struct {
		DocumentID string `json:"documentId"`
		ShardKey   string `json:"shardKey"`
		RootHash   string `json:"rootHash"`
		NodeCount  int    `json:"nodeCount"`
		LeafCount  int    `json:"leafCount"`
	}{
		DocumentID: t.DocumentID,
		ShardKey:   t.ShardKey,
		RootHash:   t.RootHash.String(),
		NodeCount:  t.NodeCount(),
		LeafCount:  t.LeafCount,
	}, "", "    ")
}

func (d *DiffResult) MarshalJSON() ([]byte, error) {
	return json.MarshalIndent(&struct {
		Changed   []string `json:"changed"`
		Added     []string `json:"added"`
		Removed   []string `json:"removed"`
		Moved     []Move   `json:"moved"`
		Unchanged int      `json:"unchanged"`
	}{
		Changed:   sortedIDs(d.Changed),
		Added:     sortedIDs(d.Added),
		Removed:   sortedIDs(d.Removed),
		Moved:     d.Moved,
		Unchanged: d.Unchanged,
	}, "", "    ")
}

func (m Move) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		ID   string `json:"id"`
		From int    `json:"from"`
		To   int    `json:"to"`
	}{string(m.ID), m.From, m.To})
}

func sortedIDs(set map[BlockID]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	return ids
}

func (d *DiffResult) PrettyPrint() {
	jsonBytes, err := d.MarshalJSON()
	if err != nil {
		fmt.Println("Error marshalling DiffResult to JSON:", err)
		return
	}

	fmt.Println(string(jsonBytes))
}
