package openbadges

import "github.com/badgrhq/badgr-server/badgr"

// Criteria is the criteria block of a badge class.
type Criteria struct {
	ID        string `json:"id,omitempty"`
	Narrative string `json:"narrative,omitempty"`
}

// AlignmentObject is an OB 2.0 alignment.
type AlignmentObject struct {
	TargetName        string `json:"targetName"`
	TargetURL         string `json:"targetUrl"`
	TargetDescription string `json:"targetDescription,omitempty"`
	TargetFramework   string `json:"targetFramework,omitempty"`
	TargetCode        string `json:"targetCode,omitempty"`
}

// BadgeClassV2 is an Open Badges 2.0 badge class.
type BadgeClassV2 struct {
	Context     string            `json:"@context"`
	Type        string            `json:"type"`
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Image       string            `json:"image"`
	Criteria    Criteria          `json:"criteria"`
	Issuer      string            `json:"issuer"`
	Alignment   []AlignmentObject `json:"alignment,omitempty"`
}

// IssuerV2 is an Open Badges 2.0 issuer profile.
type IssuerV2 struct {
	Context     string `json:"@context"`
	Type        string `json:"type"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url,omitempty"`
	Email       string `json:"email,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
}

// BuildBadgeClass assembles the Open Badges 2.0 form of a badge class.
func BuildBadgeClass(urls URLs, class *badgr.BadgeClass, issuer *badgr.Issuer) BadgeClassV2 {
	doc := BadgeClassV2{
		Context:     ContextV2,
		Type:        "BadgeClass",
		ID:          urls.BadgeClass(class.EntityID),
		Name:        class.Name,
		Description: class.Description,
		Image:       urls.BadgeClassImage(class.EntityID),
		Criteria:    Criteria{ID: class.CriteriaURL, Narrative: class.CriteriaText},
		Issuer:      urls.Issuer(issuer.EntityID),
	}
	for _, a := range class.Alignments {
		doc.Alignment = append(doc.Alignment, AlignmentObject{
			TargetName:        a.TargetName,
			TargetURL:         a.TargetURL,
			TargetDescription: a.TargetDescription,
			TargetFramework:   a.TargetFramework,
			TargetCode:        a.TargetCode,
		})
	}
	return doc
}

// BuildIssuer assembles the Open Badges 2.0 profile of an issuer.
func BuildIssuer(urls URLs, issuer *badgr.Issuer) IssuerV2 {
	doc := IssuerV2{
		Context:     ContextV2,
		Type:        "Issuer",
		ID:          urls.Issuer(issuer.EntityID),
		Name:        issuer.Name,
		URL:         issuer.URL,
		Email:       issuer.Email,
		Description: issuer.Description,
	}
	if len(issuer.Image) > 0 {
		doc.Image = urls.Issuer(issuer.EntityID) + "/image"
	}
	return doc
}
