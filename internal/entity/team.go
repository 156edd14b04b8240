package entity

import "time"

// Team groups members under a leader. Teams nest via SubTeamIDs, which
// the store keeps acyclic the same way it does task parents.
type Team struct {
	ID         string       `json:"id"`
	ProjectID  string       `json:"project_id"`
	Name       string       `json:"name"`
	LeaderID   string       `json:"leader_id"`
	MemberIDs  []string     `json:"member_ids"`
	SubTeamIDs []string     `json:"sub_team_ids,omitempty"`
	Status     MemberStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// HasMember reports whether the member id is in MemberIDs.
func (t *Team) HasMember(memberID string) bool {
	for _, id := range t.MemberIDs {
		if id == memberID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the team.
func (t *Team) Clone() *Team {
	cp := *t
	cp.MemberIDs = append([]string(nil), t.MemberIDs...)
	cp.SubTeamIDs = append([]string(nil), t.SubTeamIDs...)
	return &cp
}
