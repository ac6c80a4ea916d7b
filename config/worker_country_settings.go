package config

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/apperr"

	"gopkg.in/yaml.v3"
)

// MaxShippingWorkers caps the concurrent shipping-policy workers.
const MaxShippingWorkers = 50

// =============================================================================
// Defaults
// =============================================================================

// ShippingPromptTemplate is the instruction sent ahead of the shipping page text.
const ShippingPromptTemplate = `
# Description of the task
    You are an assistant whose role is to determine whether the text on an e-commerce site's shipping policy page mentions shipping to {country_long}.

# Response Instructions
    • When the e-commerce website's shipping policy page mentions that the site delivers globally, worldwide or in Europe, you should assume that the site delivers in {country_long} even if it is not explicitly mentioned.
    • You must respond in the following JSON format:
        {"is_shipping_{country}_answer": "<answer to if the site delivers to {country_long}>",
        "is_shipping_{country}_justification": "<justification for the answer to if the site delivers to {country_long}>"}

        •  "<answer to if the site delivers to {country_long}>" is:
            •  "yes" - if the text strictly mentions the fact that the website ships to {country_long} or if the text mentions that the site delivers globally, worldwide or in Europe
            •  "no" - if the text strictly mentions the fact that the website does not ship to {country_long}
            •  "not_clear" - if there is a lack of information about whether the site delivers to {country_long}

        • "<justification for the answer to if the site delivers to {country_long}>" is a brief explanation of the response choice for the relevant website. Explanations must be in English and must not exceed 80 tokens.

# Example 1:
• Text of an e-commerce shipping policy page:
    Lieferungen von Bestellungen über den Online Shop erfolgen weltweit.

    Bestellungen aus dem Ausland:
    Region
    Europa
    Albanien, Belarus (Weißrussland), Bosnien und Herzegowina, Gibraltar, Guernsey, Island, Jersey, Liechtenstein, Litauen, Mazedonien, Moldawien, Montenegro, Norwegen, {country_long}, Serbien, Ukraine

    Südamerika
    Argentinien, Bolivien, Brasilien, Chile, Ecuador, Falklandinseln (Malwinen), Französisch-Guayana, Guyana, Kolumbien, Paraguay, Peru, Suriname, Uruguay, Venezuela

• Expected JSON response:
    {"is_shipping_{country}_answer": "yes",
    "is_shipping_{country}_justification": "The text mentions that the site delivers worldwide, including {country_long}"}

# Example 2:
• Text of an e-commerce shipping policy page:
    VERSANDBEDINGUNGEN
    Der Versand innerhalb Deutschlands erfolgt als DHL-Paket.

    Die nachstehenden Versandkosten beinhalten die gesetzliche Mehrwertsteuer:
    • 4,99 € innerhalb Deutschland

    Soweit in der Artikelbeschreibung keine andere Frist angegeben ist, erfolgt die Lieferung der Ware innerhalb von 3 5 Tagen* nach Vertragsschluss (bei Vorauszahlung erst nach Eingang des vollständigen Kaufpreises und der Versandkosten).

    * gilt für Lieferungen innerhalb Deutschlands

    Die Abgabe unserer Artikel erfolgt nur in haushaltsüblichen Mengen.

• Expected JSON response:
    {"is_shipping_{country}_answer": "no",
    "is_shipping_{country}_justification": "{country_long} is not mentioned in the text and the text doesn't mention worldwide or European shipping"}

# Text to be used for the task:
Here is the text of the e-commerce site's shipping policy page you have to work on:
`

// languageTags returns lang-cc, cc-lang, lang_cc and cc_lang for every language.
func languageTags(country string, langs ...string) []string {
	tags := make([]string, 0, len(langs)*4)
	for _, sep := range []string{"-", "_"} {
		for _, l := range langs {
			tags = append(tags, l+sep+country)
		}
		for _, l := range langs {
			tags = append(tags, country+sep+l)
		}
	}
	return tags
}

// DefaultCountrySettings returns the built-in settings keyed by upper-case country code.
func DefaultCountrySettings() map[string]domain.CountrySettings {
	llm := domain.ModelSettings{Model: "mistral-large-latest", Temperature: 0.0}

	return map[string]domain.CountrySettings{
		"CH": {
			Country:      "ch",
			CountryLong:  "Switzerland",
			FiltererName: "known_domains+url",
			URL: domain.URLTokens{
				Countries:       []string{"ch", "che"},
				TopLevelDomains: []string{"ch", "swiss"},
				SubLevelDomains: []string{},
				Languages:       languageTags("ch", "de", "en", "fr", "gsw", "it", "pt", "rm", "wae"),
				Currencies:      []string{"chf"},
			},
			Shipping: domain.ShippingSettings{
				Keywords: []string{
					"livraison", "expédit", "expedit",
					"lieferung", "versand", "liefer",
					"deliveri", "ship",
					"consegna", "spedizion",
				},
				DomainsPos: []string{
					"www.ebay.co.uk", "www.ebay.de", "www.herbkart.com",
					"www.hood.de", "www.ebay.com", "gloriaexports.com",
				},
				DomainsUnknown: []string{
					"www.etsy.com", "www.joom.com", "www.inspireuplift.com", "stockx.com",
					"saner.health", "www.amama.com.au", "www.biblio.com", "www.uline.com",
					"sparklingspices.us", "www.victorinox.com", "biaxol.com",
				},
				DomainsNeg:     []string{"www.eneba.com"},
				PromptTemplate: ShippingPromptTemplate,
				LLM:            llm,
				Fetch:          domain.FetchSettings{Geolocation: "CH", RenderJS: true},
				MaxWorkers:     MaxShippingWorkers,
			},
			KeysToSave:               slices.Clone(domain.DefaultKeysToSave),
			SaveNewClassifiedDomains: true,
		},
		"AT": {
			Country:      "at",
			CountryLong:  "Austria",
			FiltererName: "known_domains+url",
			URL: domain.URLTokens{
				Countries:       []string{"at"},
				TopLevelDomains: []string{"at", "com", "de", "ch", "au", "eu"},
				SubLevelDomains: []string{},
				Languages:       languageTags("at", "de", "en", "sl", "hr", "hu", "ch", "it", "fr"),
				Currencies:      []string{"eur"},
			},
			Shipping: domain.ShippingSettings{
				Keywords: []string{
					"lieferung", "versand", "liefer",
					"deliveri", "ship",
					"dostava", "pošiljka", "pošta",
				},
				PromptTemplate: ShippingPromptTemplate,
				LLM:            llm,
				Fetch:          domain.FetchSettings{Geolocation: "AT", RenderJS: true},
				MaxWorkers:     MaxShippingWorkers,
			},
			KeysToSave:               slices.Clone(domain.DefaultKeysToSave),
			SaveNewClassifiedDomains: true,
		},
	}
}

// =============================================================================
// Loading
// =============================================================================

// LoadCountrySettings returns the settings for country, with the optional YAML
// override file merged over the built-in defaults.
//
// The override file is keyed by country code:
//
//	CH:
//	  filterer_name: known_domains+url
//	  shipping:
//	    use_concurrency: true
func LoadCountrySettings(country, overridePath string) (*domain.CountrySettings, error) {
	code := strings.ToUpper(strings.TrimSpace(country))
	all := DefaultCountrySettings()

	if overridePath != "" {
		if err := applyOverrides(all, overridePath); err != nil {
			return nil, err
		}
	}

	s, ok := all[code]
	if !ok {
		return nil, apperr.ConfigError(fmt.Sprintf("no settings for country %q", country))
	}
	if err := ValidateCountrySettings(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

func applyOverrides(all map[string]domain.CountrySettings, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperr.ConfigError("failed to read settings file").WithError(err)
	}

	var nodes map[string]yaml.Node
	if err := yaml.Unmarshal(data, &nodes); err != nil {
		return apperr.ConfigError("failed to parse settings file").WithError(err)
	}

	for code, node := range nodes {
		code = strings.ToUpper(code)
		s := all[code]

		raw, err := yaml.Marshal(&node)
		if err != nil {
			return apperr.ConfigError("failed to re-encode settings for " + code).WithError(err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&s); err != nil {
			return apperr.ConfigError("invalid settings for " + code).WithError(err)
		}
		all[code] = s
	}
	return nil
}

// KnownFiltererNames lists the names a cascade description may use.
var KnownFiltererNames = []string{
	domain.FiltererKnownDomains,
	domain.FiltererURL,
	domain.FiltererShippingPolicy,
}

// ValidateCountrySettings rejects settings the pipeline cannot run with.
func ValidateCountrySettings(s *domain.CountrySettings) error {
	if s.Country == "" {
		return apperr.ConfigError("country is required")
	}
	if s.CountryLong == "" {
		return apperr.ConfigError("country_long is required")
	}
	names := s.FiltererNames()
	if len(names) == 0 {
		return apperr.ConfigError("filterer_name is required")
	}
	for _, n := range names {
		if !slices.Contains(KnownFiltererNames, n) {
			return apperr.ConfigError(fmt.Sprintf("unknown filterer %q in %q", n, s.FiltererName))
		}
	}
	if strings.TrimSpace(s.Shipping.PromptTemplate) == "" {
		return apperr.ConfigError("shipping prompt_template is required")
	}
	if s.Shipping.LLM.Model == "" {
		return apperr.ConfigError("shipping llm model is required")
	}
	if s.Shipping.MaxWorkers < 0 || s.Shipping.MaxWorkers > MaxShippingWorkers {
		return apperr.ConfigError(fmt.Sprintf("shipping max_workers must be between 0 and %d", MaxShippingWorkers))
	}
	if len(s.KeysToSave) == 0 {
		s.KeysToSave = slices.Clone(domain.DefaultKeysToSave)
	}
	return nil
}
