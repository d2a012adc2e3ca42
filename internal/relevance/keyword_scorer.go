package relevance

import "strings"

// financeVocabulary is the fixed multilingual vocabulary the prefilter
// matches against: roughly 80 finance-domain terms. English-first with a
// handful of transliterated/localised equivalents, since source scrapers
// cover non-English outlets too.
var financeVocabulary = []string{
	// English
	"market", "markets", "stock", "stocks", "equity", "equities", "bond", "bonds",
	"merger", "acquisition", "bankruptcy", "insolvency", "default", "ipo",
	"earnings", "revenue", "profit", "loss", "dividend", "buyback",
	"inflation", "deflation", "recession", "gdp", "interest rate", "rate hike",
	"rate cut", "central bank", "federal reserve", "treasury", "yield",
	"currency", "forex", "exchange rate", "devaluation", "trade deficit",
	"tariff", "sanctions", "embargo", "regulation", "antitrust", "compliance",
	"fraud", "investigation", "lawsuit", "settlement", "guidance", "forecast",
	"outlook", "valuation", "shares", "shareholder", "investor", "investment",
	"fund", "hedge fund", "private equity", "venture capital", "startup",
	"unicorn", "layoffs", "restructuring", "bailout", "subsidy", "budget",
	"deficit", "surplus", "debt", "credit rating", "downgrade", "upgrade",
	"commodity", "oil price", "gold price", "supply chain", "inflation rate",
	"unemployment", "jobs report", "economy", "economic", "fiscal", "monetary",
	"stimulus", "tax", "taxation", "export", "import", "trade war",
	// transliterated / localised equivalents seen in non-English sources
	"экономика", "инфляция", "санкции", "банкротство", "акции", "биржа",
}

// KeywordPrefilter implements Prefilter: lowercased substring match over
// financeVocabulary. Cost is O(text length) per call.
type KeywordPrefilter struct {
	vocabulary []string
}

// NewKeywordPrefilter constructs a prefilter over the default finance
// vocabulary.
func NewKeywordPrefilter() *KeywordPrefilter {
	return &KeywordPrefilter{vocabulary: financeVocabulary}
}

// Check implements Prefilter.
func (p *KeywordPrefilter) Check(article Scorable) Verdict {
	text := strings.ToLower(article.GetTitle() + " " + article.GetContent())
	for _, term := range p.vocabulary {
		if strings.Contains(text, term) {
			return Candidate
		}
	}
	return DefinitelyIrrelevant
}
