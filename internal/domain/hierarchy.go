package domain

// HierarchyRows groups the rows produced by expanding one condition against
// the MeSH ancestor table.
type HierarchyRows struct {
	Mesh          []Row
	IsA           []Row
	ConditionMesh []Row
}
