package model

// RawUserRecord is one user as returned by the descendants endpoint.
// Optional fields are pointers so an absent key is distinguishable from a
// zero value.
type RawUserRecord struct {
	UserID               int64    `json:"userId"`
	Email                string   `json:"email"`
	FullName             string   `json:"fullName"`
	CreatedAt            string   `json:"createdAt"`
	TotalDescendants     int      `json:"totalDescendants"`
	HasDescendants       *bool    `json:"hasDescendants,omitempty"`
	LevelInSubtree       int      `json:"levelInSubtree"`
	DirectParentFullName *string  `json:"directParentFullName,omitempty"`
	DirectParentEmail    *string  `json:"directParentEmail,omitempty"`
	Volumen              *float64 `json:"volumen,omitempty"`
	ComisionesGeneradas  *float64 `json:"comisiones_generadas,omitempty"`
}

// RawPage is the envelope of the descendants endpoint.
type RawPage struct {
	Users                      []RawUserRecord `json:"users"`
	HasMore                    *bool           `json:"hasMore,omitempty"`
	TotalDescendants           *int            `json:"totalDescendants,omitempty"`
	RequesterLevelToDescendant *int            `json:"requesterLevelToDescendant,omitempty"`
	Summary                    *Summary        `json:"summary,omitempty"`
}

// Normalize converts a raw record into a TreeNode. AuthLevel is left at
// zero; the materializer assigns it at commit time.
func (r RawUserRecord) Normalize() TreeNode {
	n := TreeNode{
		ID:                   r.UserID,
		DisplayName:          r.FullName,
		Email:                r.Email,
		CreatedAt:            r.CreatedAt,
		LevelInSubtree:       r.LevelInSubtree,
		TotalDescendants:     r.TotalDescendants,
		HasDescendants:       r.TotalDescendants > 0,
		Volume:               r.Volumen,
		CommissionsGenerated: r.ComisionesGeneradas,
	}
	if n.TotalDescendants < 0 {
		n.TotalDescendants = 0
	}
	if r.HasDescendants != nil {
		n.HasDescendants = *r.HasDescendants
	}
	if r.DirectParentFullName != nil {
		n.ParentName = *r.DirectParentFullName
	}
	if r.DirectParentEmail != nil {
		n.ParentEmail = *r.DirectParentEmail
	}
	return n
}
