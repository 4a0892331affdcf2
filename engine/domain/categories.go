package domain

// Category is one entry of the fixed tech category table.
type Category struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Query string `json:"query"`
}

// CategoryAll selects top headlines instead of a keyword search.
const CategoryAll = "all"

// DefaultQuery is used when no category or search text yields a query.
const DefaultQuery = "technology"

// GenericTechQuery is the search expansion for unknown categories.
const GenericTechQuery = "technology OR tech OR programming OR software OR innovation OR digital"

var categories = []Category{
	{ID: "all", Label: "All Categories", Query: "technology OR tech OR AI OR programming OR software"},
	{ID: "ai", Label: "AI & Machine Learning", Query: "artificial intelligence OR machine learning OR AI OR ML OR deep learning"},
	{ID: "webdev", Label: "Web Development", Query: "web development OR frontend OR backend OR javascript OR react OR nodejs"},
	{ID: "mobile", Label: "Mobile Development", Query: "mobile development OR iOS OR Android OR React Native OR Flutter"},
	{ID: "cybersecurity", Label: "Cybersecurity", Query: "cybersecurity OR security OR hacking OR privacy OR data breach"},
	{ID: "cloud", Label: "Cloud Computing", Query: "cloud computing OR AWS OR Azure OR Google Cloud OR serverless"},
	{ID: "blockchain", Label: "Blockchain & Crypto", Query: "blockchain OR cryptocurrency OR bitcoin OR ethereum OR web3"},
	{ID: "startup", Label: "Startups & VC", Query: "startup OR venture capital OR funding OR IPO OR tech companies"},
	{ID: "gadgets", Label: "Gadgets & Hardware", Query: "gadgets OR hardware OR smartphone OR laptop OR tech reviews"},
}

// searchExpansions are the longer keyword lists the fetch client sends for a
// category lookup.
var searchExpansions = map[string]string{
	"ai":            "artificial intelligence OR machine learning OR AI OR ML OR deep learning OR neural networks OR ChatGPT OR OpenAI OR Claude OR Gemini",
	"webdev":        "web development OR frontend OR backend OR javascript OR react OR nodejs OR vue OR angular OR typescript OR CSS OR HTML",
	"mobile":        "mobile development OR iOS OR Android OR React Native OR Flutter OR Swift OR Kotlin OR mobile apps OR smartphone",
	"cybersecurity": "cybersecurity OR security OR hacking OR privacy OR data breach OR malware OR encryption OR ransomware OR firewall",
	"cloud":         "cloud computing OR AWS OR Azure OR Google Cloud OR serverless OR kubernetes OR docker OR microservices OR DevOps",
	"blockchain":    "blockchain OR cryptocurrency OR bitcoin OR ethereum OR web3 OR NFT OR DeFi OR crypto OR smart contracts OR metaverse",
	"startup":       "startup OR venture capital OR funding OR IPO OR tech companies OR unicorn OR Series A OR entrepreneurship OR innovation",
	"gadgets":       "gadgets OR hardware OR smartphone OR laptop OR tech reviews OR Apple OR Samsung OR Google OR electronics OR wearables",
}

// Categories returns a copy of the category table in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// LookupCategory finds a category by id.
func LookupCategory(id string) (Category, bool) {
	for _, c := range categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// CategorySearchQuery returns the keyword expansion used for a category
// lookup, falling back to GenericTechQuery.
func CategorySearchQuery(id string) string {
	if q, ok := searchExpansions[id]; ok {
		return q
	}
	return GenericTechQuery
}
