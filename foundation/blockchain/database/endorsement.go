package database

// Endorsement represents the attestation that the endorsed block existed when
// the block of proof was mined. Endorsements reference blocks by hash only.
type Endorsement struct {
	ID                 Hash  `json:"id"`
	EndorsedHash       Hash  `json:"endorsed"`     // Block of the protected chain that is endorsed.
	ContainingHash     Hash  `json:"containing"`   // Block of the protected chain holding the payload.
	BlockOfProof       Hash  `json:"blockOfProof"` // Block of the protecting chain holding the publication.
	BlockOfProofHeight int32 `json:"blockOfProofHeight"`
}
