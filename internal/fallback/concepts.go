package fallback

import "regexp"

// Concept is one entry in the educational knowledge base.
type Concept struct {
	re          *regexp.Regexp
	Name        string
	Explanation string
}

var concepts = []Concept{
	{regexp.MustCompile(`(?i)\bemergency fund\b`), "Emergency fund",
		"An emergency fund is cash set aside for unexpected costs such as a job loss or car repair. A common target is three to six months of essential expenses, kept somewhere easy to reach."},
	{regexp.MustCompile(`(?i)\bnet worth\b`), "Net worth",
		"Net worth is everything you own (cash, investments, property) minus everything you owe (loans, card balances). Tracking it over time shows whether your overall position is improving."},
	{regexp.MustCompile(`(?i)\bapr\b|\bannual percentage rate\b`), "APR",
		"APR, the annual percentage rate, is the yearly cost of borrowing including interest. A card with 24% APR charges about 2% of the balance each month you carry it."},
	{regexp.MustCompile(`(?i)\bcompound(?:ing)? interest\b`), "Compound interest",
		"Compound interest is interest earned on earlier interest. Over long periods it makes savings grow faster and makes unpaid debt grow faster too."},
	{regexp.MustCompile(`(?i)\b50/30/20\b`), "50/30/20 rule",
		"The 50/30/20 rule splits take-home pay into 50% needs, 30% wants and 20% savings or debt payments. It is a starting point, not a requirement."},
	{regexp.MustCompile(`(?i)\bsinking fund\b`), "Sinking fund",
		"A sinking fund is money saved a little at a time for a known future expense, such as insurance premiums or holiday gifts, so the bill doesn't land all at once."},
	{regexp.MustCompile(`(?i)\bcredit utili[sz]ation\b`), "Credit utilization",
		"Credit utilization is how much of your available card credit you are using. Lower utilization is generally viewed more favorably by lenders."},
	{regexp.MustCompile(`(?i)\b(?:debt )?snowball\b`), "Debt snowball",
		"The debt snowball pays minimums on every debt and puts extra money toward the smallest balance first. Quick wins keep motivation up."},
	{regexp.MustCompile(`(?i)\b(?:debt )?avalanche\b`), "Debt avalanche",
		"The debt avalanche pays minimums on every debt and puts extra money toward the highest interest rate first. It usually costs the least interest overall."},
	{regexp.MustCompile(`(?i)\bsavings rate\b`), "Savings rate",
		"Your savings rate is the share of income you keep after spending. Saving $500 of a $5,000 monthly income is a 10% savings rate."},
	{regexp.MustCompile(`(?i)\bcash flow\b`), "Cash flow",
		"Cash flow is money coming in minus money going out over a period. Positive cash flow means you ended the period with more than you started."},
	{regexp.MustCompile(`(?i)\bbudget(?:ing)?\b`), "Budget",
		"A budget is a plan for how much you intend to spend in each category over a period. Comparing actual spending against it shows where money goes."},
	{regexp.MustCompile(`(?i)\b401\(?k\)?\b|\bira\b`), "Retirement accounts",
		"A 401(k) is an employer-sponsored retirement account and an IRA is one you open yourself. Both offer tax advantages in exchange for limits on early withdrawals."},
	{regexp.MustCompile(`(?i)\bdiversif(?:y|ication)\b`), "Diversification",
		"Diversification means spreading money across many investments so that one poor performer has less effect on the whole."},
}

// FindConcept returns the first knowledge-base entry text mentions.
func FindConcept(text string) (Concept, bool) {
	for _, c := range concepts {
		if c.re.MatchString(text) {
			return c, true
		}
	}
	return Concept{}, false
}

// ConceptNames lists every concept the knowledge base covers.
func ConceptNames() []string {
	names := make([]string, len(concepts))
	for i, c := range concepts {
		names[i] = c.Name
	}
	return names
}

var (
	explanationSeeking = regexp.MustCompile(`(?i)^\s*(?:what(?:'s| is| are) (?:a|an)\b|what does\b.*\bmean\b|explain\b|define\b|how does\b|how do\b.*\bwork\b|why (?:do|does|should)\b|tell me about\b|what(?:'s| is) the difference\b)`)
	whatIs             = regexp.MustCompile(`(?i)^\s*what(?:'s| is| are)\b`)
)

// IsExplanationSeeking reports whether text asks for an explanation rather
// than a figure. A bare "what is" counts only when it names a known concept.
func IsExplanationSeeking(text string) bool {
	if explanationSeeking.MatchString(text) {
		return true
	}
	if whatIs.MatchString(text) {
		_, ok := FindConcept(text)
		return ok
	}
	return false
}
