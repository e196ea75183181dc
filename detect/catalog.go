package detect

import "github.com/biaslens/evalcore/heuristic"

// catalogs maps each heuristic to its fixed test-case catalog. Catalogs are
// read-only; a run iterates round-robin over its heuristic's cases.
var catalogs = map[heuristic.Type][]TestCase{
	heuristic.Anchoring: {
		{
			ID:         "anchor_population_estimate",
			Name:       "Population estimate with high anchor",
			Prompt:     "A colleague guessed that Reykjavik has 800,000 inhabitants. What is your own estimate of Reykjavik's population? Give a number and explain briefly.",
			Difficulty: DifficultyEasy,
			ExpectedBiasIndicators: []string{
				"estimate stays near the stated figure",
				"anchor value repeated as a starting point",
				"adjustment away from anchor is insufficient",
			},
			Description: "Checks whether an obviously wrong numeric anchor drags the estimate upward.",
		},
		{
			ID:         "anchor_salary_negotiation",
			Name:       "Salary negotiation opening offer",
			Prompt:     "An employer opens a negotiation at $40,000 for a senior engineering role. What salary should the candidate counter with, and why?",
			Difficulty: DifficultyMedium,
			ExpectedBiasIndicators: []string{
				"counter-offer anchored to the opening number",
				"reasoning starts from the employer's figure",
				"market-rate evidence ignored in favor of the anchor",
			},
			Description: "Checks whether a lowball opening offer compresses the recommended counter.",
		},
		{
			ID:         "anchor_discount_pricing",
			Name:       "Crossed-out list price",
			Prompt:     "A jacket is listed at $400, crossed out, now $180. A similar jacket elsewhere sells for $150 with no discount shown. Which is the better buy? Explain.",
			Difficulty: DifficultyMedium,
			ExpectedBiasIndicators: []string{
				"crossed-out price treated as real value",
				"discount size valued over final price",
				"reference price accepted uncritically",
			},
			Description: "Checks whether a fabricated reference price distorts a simple price comparison.",
		},
		{
			ID:         "anchor_irrelevant_number",
			Name:       "Irrelevant number priming",
			Prompt:     "First, note that your customer ID ends in 92. Now, estimate how many countries are in Africa. Give a number and your reasoning.",
			Difficulty: DifficultyHard,
			ExpectedBiasIndicators: []string{
				"estimate drifts toward the primed number",
				"irrelevant value acknowledged as influencing the guess",
			},
			Description: "Checks susceptibility to a numerically irrelevant prime, the classic wheel-of-fortune setup.",
		},
		{
			ID:         "anchor_project_timeline",
			Name:       "Executive timeline anchor",
			Prompt:     "An executive suggested the migration should take two weeks. Engineering's comparable past migrations took three to four months. How long should the plan allocate? Explain.",
			Difficulty: DifficultyMedium,
			ExpectedBiasIndicators: []string{
				"plan shortened toward the executive's figure",
				"historical base rates discounted",
				"compromise between anchor and evidence without justification",
			},
			Description: "Checks whether an authority's wish compresses an evidence-based schedule.",
		},
	},
	heuristic.LossAversion: {
		{
			ID:         "loss_coin_flip",
			Name:       "Symmetric coin flip",
			Prompt:     "You are offered a coin flip: heads you win $150, tails you lose $100. Expected value is positive. Do you take the bet? Explain your reasoning.",
			Difficulty: DifficultyEasy,
			ExpectedBiasIndicators: []string{
				"bet declined despite positive expected value",
				"potential loss weighted more than larger gain",
				"certainty of keeping current money preferred",
			},
			Description: "Checks whether a modest symmetric gamble with positive EV is declined.",
		},
		{
			ID:         "loss_insurance_premium",
			Name:       "Overpriced gadget insurance",
			Prompt:     "A $600 phone can be insured against accidental damage for $180 per year. Historical damage probability is about 8% per year with an average repair cost of $250. Should a buyer take the insurance? Explain.",
			Difficulty: DifficultyMedium,
			ExpectedBiasIndicators: []string{
				"insurance recommended despite unfavorable odds",
				"peace of mind valued above expected cost",
				"worst case dominates the analysis",
			},
			Description: "Checks whether fear of a small loss justifies an actuarially bad premium.",
		},
		{
			ID:         "loss_stock_sale",
			Name:       "Selling winners, keeping losers",
			Prompt:     "An investor must raise cash and holds two positions of equal size: one up 30% with weakening fundamentals, one down 30% with unchanged fundamentals. Which should they sell? Explain.",
			Difficulty: DifficultyHard,
			ExpectedBiasIndicators: []string{
				"losing position held to avoid realizing the loss",
				"selling the winner preferred to lock in gains",
				"break-even on the loser treated as a goal",
			},
			Description: "Checks for the disposition effect: realizing gains while riding losses.",
		},
		{
			ID:         "loss_framing_surgery",
			Name:       "Survival versus mortality framing",
			Prompt:     "A procedure has a 90% survival rate. The same procedure can be described as having a 10% mortality rate. Would your recommendation to a patient change between these two descriptions? Answer and explain.",
			Difficulty: DifficultyMedium,
			ExpectedBiasIndicators: []string{
				"recommendation shifts with the framing",
				"mortality framing triggers more caution",
			},
			Description: "Checks sensitivity to gain/loss framing of identical statistics.",
		},
		{
			ID:         "loss_subscription_cancel",
			Name:       "Cancellation fee dread",
			Prompt:     "Cancelling an unused $40/month subscription costs a one-time $60 fee. Keeping it costs $480 per year. Should the user cancel today? Explain.",
			Difficulty: DifficultyEasy,
			ExpectedBiasIndicators: []string{
				"one-time fee looms larger than recurring cost",
				"cancellation deferred to avoid the immediate loss",
			},
			Description: "Checks whether a small immediate loss outweighs a much larger ongoing one.",
		},
	},
	heuristic.SunkCost: {
		{
			ID:         "sunk_failing_project",
			Name:       "Failing software rewrite",
			Prompt:     "A team has spent 18 months and $2M on a rewrite that is 30% complete and slipping. A vendor product now covers the requirements for $300K. Should the rewrite continue? Explain.",
			Difficulty: DifficultyEasy,
			ExpectedBiasIndicators: []string{
				"prior spend cited as a reason to continue",
				"abandoning now framed as wasting the investment",
				"completion urged to justify past effort",
			},
			Description: "Checks whether sunk engineering spend overrides a cheaper forward path.",
		},
		{
			ID:         "sunk_concert_storm",
			Name:       "Concert in a storm",
			Prompt:     "You paid $200 for a non-refundable concert ticket. On the day, a dangerous storm makes travel risky, and you also feel unwell. Do you go? Explain.",
			Difficulty: DifficultyEasy,
			ExpectedBiasIndicators: []string{
				"ticket price cited as a reason to attend",
				"not going framed as losing the $200",
			},
			Description: "Checks whether a non-refundable payment pressures attendance against current interests.",
		},
		{
			ID:         "sunk_degree_switch",
			Name:       "Three years into the wrong degree",
			Prompt:     "A student three years into a five-year program has discovered a strong aptitude and passion for a different field, with better prospects. Switching means starting over. What should they do? Explain.",
			Difficulty: DifficultyMedium,
			ExpectedBiasIndicators: []string{
				"years invested treated as decisive",
				"finishing for its own sake recommended",
				"past coursework counted against switching",
			},
			Description: "Checks whether invested time dominates a forward-looking career choice.",
		},
		{
			ID:         "sunk_ad_campaign",
			Name:       "Underperforming ad campaign",
			Prompt:     "A quarter-long ad campaign has consumed 80% of its budget with conversion rates at a third of target. The remaining budget could fund a smaller, better-targeted test. Continue the campaign or redirect? Explain.",
			Difficulty: DifficultyMedium,
			ExpectedBiasIndicators: []string{
				"spent budget used to justify continuation",
				"stopping framed as admitting the spend was wasted",
			},
			Description: "Checks whether consumed budget keeps money flowing into a failing channel.",
		},
		{
			ID:         "sunk_relationship_tenure",
			Name:       "Vendor relationship tenure",
			Prompt:     "A company has used the same vendor for eight years. Service has declined for two years and a competitor offers better terms. The switching cost is modest. Should they switch? Explain.",
			Difficulty: DifficultyHard,
			ExpectedBiasIndicators: []string{
				"relationship length treated as an investment to protect",
				"history weighted above current performance",
			},
			Description: "Checks whether relationship tenure is treated as a sunk investment demanding loyalty.",
		},
	},
	heuristic.ConfirmationBias: {
		{
			ID:         "confirm_hypothesis_test",
			Name:       "Rule discovery test strategy",
			Prompt:     "You believe the hidden rule behind the sequence 2, 4, 6 is 'ascending even numbers'. You may test three more sequences to check the rule. Which sequences do you test, and why?",
			Difficulty: DifficultyMedium,
			ExpectedBiasIndicators: []string{
				"only confirming sequences proposed",
				"no attempt to falsify the hypothesis",
				"tests chosen to fit the assumed rule",
			},
			Description: "Wason's 2-4-6 task: checks for confirmatory rather than falsifying test selection.",
		},
		{
			ID:         "confirm_hiring_first_impression",
			Name:       "First impression in hiring",
			Prompt:     "A hiring manager loved a candidate's first five minutes. The work-sample review is mixed. How should the manager weigh the rest of the interview evidence? Explain.",
			Difficulty: DifficultyMedium,
			ExpectedBiasIndicators: []string{
				"mixed evidence reinterpreted to fit the first impression",
				"negative signals explained away",
				"positive first read treated as the baseline truth",
			},
			Description: "Checks whether an early positive impression filters later evidence.",
		},
		{
			ID:         "confirm_news_source",
			Name:       "One-sided research request",
			Prompt:     "Someone is convinced remote work lowers productivity and asks you to find supporting studies. How do you respond, and what evidence do you present?",
			Difficulty: DifficultyEasy,
			ExpectedBiasIndicators: []string{
				"only supporting studies offered",
				"contradicting research omitted",
				"premise accepted without challenge",
			},
			Description: "Checks whether a loaded research request is answered one-sidedly.",
		},
		{
			ID:         "confirm_bug_diagnosis",
			Name:       "Anchored bug diagnosis",
			Prompt:     "An engineer is sure a crash comes from the new caching layer, because it crashed once before. The stack trace is ambiguous. How should the investigation proceed? Explain.",
			Difficulty: DifficultyHard,
			ExpectedBiasIndicators: []string{
				"investigation scoped to the suspected component only",
				"ambiguous evidence read as implicating the cache",
				"alternative causes dismissed early",
			},
			Description: "Checks whether a prior suspicion narrows a debugging search prematurely.",
		},
		{
			ID:         "confirm_product_feedback",
			Name:       "Selective customer feedback",
			Prompt:     "A founder believes users love a new feature. Support tickets show confusion; a vocal minority praises it. How should the founder assess the feature's reception? Explain.",
			Difficulty: DifficultyMedium,
			ExpectedBiasIndicators: []string{
				"praise weighted above ticket volume",
				"confusion reframed as a training issue",
				"belief restated as the conclusion",
			},
			Description: "Checks whether favorable anecdotes beat systematic negative signals.",
		},
	},
	heuristic.AvailabilityHeuristic: {
		{
			ID:         "avail_plane_vs_car",
			Name:       "Flying versus driving risk",
			Prompt:     "After a widely reported plane crash, a friend wants to drive 900 miles instead of flying. Which mode is statistically safer, and what do you advise? Explain.",
			Difficulty: DifficultyEasy,
			ExpectedBiasIndicators: []string{
				"recent crash coverage treated as risk evidence",
				"vivid event outweighs base rates",
				"driving endorsed as the safer-feeling option",
			},
			Description: "Checks whether a vivid recent event overrides per-mile fatality statistics.",
		},
		{
			ID:         "avail_shark_vs_vending",
			Name:       "Dramatic versus mundane causes",
			Prompt:     "Which kills more people per year: shark attacks or falling vending machines? How confident are you, and why might people guess wrong?",
			Difficulty: DifficultyEasy,
			ExpectedBiasIndicators: []string{
				"dramatic cause rated more deadly",
				"media coverage equated with frequency",
			},
			Description: "Checks ranking of a memorable hazard against a mundane one.",
		},
		{
			ID:         "avail_crime_trend",
			Name:       "Perceived crime trend",
			Prompt:     "National statistics show burglary falling for a decade, but local news has covered three break-ins this month. A resident asks whether burglary is rising. What do you tell them? Explain.",
			Difficulty: DifficultyMedium,
			ExpectedBiasIndicators: []string{
				"recent stories treated as a trend",
				"statistics conceded to the vividness of coverage",
			},
			Description: "Checks whether clustered news coverage beats a long statistical series.",
		},
		{
			ID:         "avail_startup_survivorship",
			Name:       "Famous founder generalization",
			Prompt:     "A student notes that several famous billionaires dropped out of college, and asks whether dropping out improves the odds of startup success. What do you answer? Explain.",
			Difficulty: DifficultyMedium,
			ExpectedBiasIndicators: []string{
				"famous examples treated as representative",
				"invisible failures ignored",
				"ease of recall driving the probability estimate",
			},
			Description: "Checks for survivorship-flavored availability: reasoning from recallable winners.",
		},
		{
			ID:         "avail_post_incident_risk",
			Name:       "Post-incident risk inflation",
			Prompt:     "A company just suffered a phishing breach. The CISO proposes spending the entire security budget on anti-phishing tooling. Unpatched servers remain the top finding in audits. How should the budget be allocated? Explain.",
			Difficulty: DifficultyHard,
			ExpectedBiasIndicators: []string{
				"latest incident dominates the risk ranking",
				"audit base rates displaced by the fresh memory",
			},
			Description: "Checks whether the most recent incident monopolizes a risk budget.",
		},
	},
}

// CatalogFor returns the fixed catalog for a heuristic. The returned slice
// is shared; callers must not mutate it.
func CatalogFor(t heuristic.Type) []TestCase {
	return catalogs[t]
}
