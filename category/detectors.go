package category

import "regexp"

// patternDetector is the shared rule-based detector: confidence is the
// fraction of its signal patterns found in the text, capped at 1.0.
// Entity patterns are tried in order per entity and the first hit wins.
type patternDetector struct {
	name     string
	signals  []*regexp.Regexp
	entities []entityPattern
}

type entityPattern struct {
	key      string
	patterns []*regexp.Regexp
}

func (d *patternDetector) Name() string { return d.name }

func (d *patternDetector) Match(lower string) float64 {
	matched := 0
	for _, re := range d.signals {
		if re.MatchString(lower) {
			matched++
		}
	}
	if len(d.signals) == 0 {
		return 0
	}
	conf := float64(matched) / float64(len(d.signals))
	if conf > 1 {
		conf = 1
	}
	return conf
}

func (d *patternDetector) Extract(text string) map[string]string {
	entities := map[string]string{}
	for _, ep := range d.entities {
		for _, re := range ep.patterns {
			m := re.FindStringSubmatch(text)
			if len(m) > 1 && m[1] != "" {
				entities[ep.key] = trimEntity(m[1])
				break
			}
		}
	}
	return entities
}

func trimEntity(s string) string {
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t') {
		s = s[:len(s)-1]
	}
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t') {
		s = s[1:]
	}
	return s
}

func compileAll(exprs ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		res[i] = regexp.MustCompile(e)
	}
	return res
}

func newInvoiceDetector() Detector {
	return &patternDetector{
		name: "Rechnung",
		signals: compileAll(
			`rechnung(snummer)?`,
			`invoice(\s+number)?`,
			`rechnungsdatum`,
			`fälligkeitsdatum`,
			`zahlbar\s+bis`,
			`netto\s*betrag`,
			`brutto\s*betrag`,
			`mehrwertsteuer`,
			`mwst\.?`,
			`ust\.?\s*id`,
			`steuer(nummer|nr\.?)`,
			`lieferant(en)?`,
			`rechnungsempfänger`,
		),
		entities: []entityPattern{
			{key: "rechnungssteller", patterns: compileAll(
				`(?i)(?:von|from|rechnungssteller):\s*([^\n\r]+)`,
				`([A-Z][^\n\r]*(?:GmbH|AG|KG|OHG|e\.K\.|UG))`,
				`(?i)lieferant(?:en)?:\s*([^\n\r]+)`,
			)},
			{key: "rechnungsnummer", patterns: compileAll(
				`(?i)rechnungsnummer:\s*([A-Z0-9-]+)`,
				`(?i)rechnung\s+nr\.?\s*([A-Z0-9-]+)`,
				`(?i)rechnung\s+([A-Z0-9-]+)`,
				`(?i)invoice(?:\s+number)?[:\s#-]*([A-Z0-9-]+)`,
			)},
			{key: "betrag", patterns: compileAll(
				`(?i)(?:gesamt|total|summe)[:\s]*([0-9.,]+)\s*€`,
				`(?i)([0-9.,]+)\s*€\s*(?:gesamt|total)`,
				`(?i)bruttobetrag[:\s]*([0-9.,]+)\s*€`,
			)},
		},
	}
}

func newBankStatementDetector() Detector {
	return &patternDetector{
		name: "Kontoauszug",
		signals: compileAll(
			`kontoauszug`,
			`bank\s*statement`,
			`konto(nummer|nr\.?)`,
			`iban`,
			`bic`,
			`saldo`,
			`buchung(stag|sdatum)`,
			`verwendungszweck`,
			`empfänger`,
			`überweisungsauftrag`,
			`lastschrift`,
			`gutschrift`,
		),
		entities: []entityPattern{
			{key: "bank", patterns: compileAll(
				`([A-Z][^\n\r]*(?:Bank|Sparkasse|Volksbank|Raiffeisenbank)(?:\s+AG)?)`,
				`((?:Sparkasse|Volksbank|Raiffeisenbank)[^\n\r]*)`,
				`(?i)bank:\s*([^\n\r]+)`,
			)},
			{key: "kontonummer", patterns: compileAll(
				`(?i)konto(?:nummer|nr\.?)[:\s]*([0-9][0-9\s]*)`,
				`(?i)iban[:\s]*([A-Z]{2}[0-9A-Z\s]+)`,
			)},
			{key: "zeitraum", patterns: compileAll(
				`(?i)(?:vom|von)\s*([0-9]{1,2}\.[0-9]{1,2}\.[0-9]{4}\s*(?:bis|zum)\s*[0-9]{1,2}\.[0-9]{1,2}\.[0-9]{4})`,
				`(?i)auszug\s*([0-9]{1,2}/[0-9]{4})`,
			)},
		},
	}
}

func newContractDetector() Detector {
	return &patternDetector{
		name: "Vertrag",
		signals: compileAll(
			`vertrag`,
			`contract`,
			`vereinbarung`,
			`agreement`,
			`vertragspartner`,
			`laufzeit`,
			`kündigung(sfrist)?`,
			`vertragsgegenstand`,
			`§\s*[0-9]+`,
			`artikel\s*[0-9]+`,
			`unterschrift(en)?`,
			`datum\s*der\s*unterzeichnung`,
		),
		entities: []entityPattern{
			{key: "vertragspartner", patterns: compileAll(
				`(?i)vertragspartner[:\s]*([^\n\r]+)`,
				`(?i)zwischen\s*([^\n\r]+?)\s*vertreten`,
				`(?i)auftraggeber[:\s]*([^\n\r]+)`,
			)},
			{key: "vertragsart", patterns: compileAll(
				`(?i)([a-zäöüß]+vertrag)`,
				`(?i)vertrag\s*(?:über|für)\s*([^\n\r]+)`,
				`(?i)vertragsgegenstand[:\s]*([^\n\r]+)`,
			)},
			{key: "laufzeit", patterns: compileAll(
				`(?i)laufzeit[:\s]*([^\n\r]+)`,
				`(?i)(?:beginnt|gültig)\s*(?:am|vom|ab)\s*([0-9]{1,2}\.[0-9]{1,2}\.[0-9]{4})`,
				`(?i)bis\s*([0-9]{1,2}\.[0-9]{1,2}\.[0-9]{4})`,
			)},
		},
	}
}
