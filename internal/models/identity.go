package models

// ExternalIdentity is the normalized result of verifying a federated
// identity assertion. Subject is the provider's stable user identifier
// (the "sub" claim); Email is mandatory for account linking and enforced
// by the resolver, not here.
type ExternalIdentity struct {
	Provider  string `json:"provider"`
	Subject   string `json:"subject"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}
