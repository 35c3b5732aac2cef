package extract

const (
	monthNames = `(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?`
	// label separator: optional colon or dash on the same line
	sep = `[ \t]*[:\-]?[ \t]*`
)

func defaultRules(cal Calendar, glyphs glyphTable) []Rule {
	return []Rule{
		{
			Field: FieldName,
			Strategies: []Strategy{
				Tag("name", "patient_name", "full_name"),
				Pattern(`(?i)\b(?:patient(?:'s)?[ \t]+name|full[ \t]+name|name)[ \t]*[:\-][ \t]*([^\n<]+)`),
				Pattern(`ስም` + sep + `([^\n<]+)`),
			},
			Normalize: normalizeName,
		},
		{
			Field: FieldAge,
			Strategies: []Strategy{
				Tag("age"),
				Pattern(`(?i)\bage\b[ \t]*(?:is)?` + sep + `(\d{1,3})\b`),
				Pattern(`ዕድሜ` + sep + `(\d{1,3})`),
				Pattern(`(?i)\bage\b[ \t]*[:\-][ \t]*([^\s,;<]+)`),
				Pattern(`ዕድሜ[ \t]*[:\-][ \t]*([^\s,;<]+)`),
				Pattern(`(?i)\b(\d{1,3})[ \t]*(?:years?|yrs?)\b`),
				Pattern(`(?i)\b(\d{1,3})[ \t]*(?:yo|y\.o\.)`),
				Pattern(`^\s*(\d{1,3})\s*$`),
			},
			Normalize: normalizeAge,
		},
		{
			Field: FieldSex,
			Strategies: []Strategy{
				Tag("sex", "gender"),
				Pattern(`(?i)\b(?:sex|gender)\b` + sep + `(\p{Ethiopic}+|[a-z]+)`),
				Pattern(`(?:ጾታ|ፆታ)` + sep + `(\p{Ethiopic}+|[A-Za-z]+)`),
				glyphs.standalonePattern(),
				Pattern(`(?i)\b(female|male)\b`),
			},
			Normalize: sexNormalizer(glyphs),
		},
		{
			Field: FieldTelephone,
			Strategies: []Strategy{
				Tag("telephone", "phone", "tel", "phone_number", "mobile"),
				Pattern(`(?i)\b(?:telephone|phone|tel|mobile)\b\.?[ \t]*(?:no\.?|number|#)?` + sep + `([+(]?\d[\d \-().]{5,20}\d)`),
				Pattern(`ስልክ` + sep + `([+(]?\d[\d \-().]{5,20}\d)`),
				Pattern(`(\+251\d{9}|\b\d{7,10}\b)`),
			},
			Normalize: normalizeTelephone,
		},
		{
			Field: FieldAddress,
			Strategies: []Strategy{
				Tag("address", "addr"),
				Pattern(`(?i)\b(?:address|addr\.?|residence)[ \t]*[:\-][ \t]*([^\n<]+)`),
				Pattern(`አድራሻ` + sep + `([^\n<]+)`),
			},
			Normalize: normalizeAddress,
		},
		{
			Field: FieldKebele,
			Strategies: []Strategy{
				Tag("kebele"),
				Pattern(`(?i)\bkebele\b[^\d\n]*(\d+)`),
				Pattern(`(?:^|[^\p{L}])(?:ቀበሌ|ቀ)(?:[^\p{L}\d\n][^\d\n]{0,10})?(\d+)`),
			},
			Normalize: normalizeKebele,
		},
		{
			Field: FieldDate,
			Strategies: []Strategy{
				Tag("date", "visit_date", "registration_date"),
				Pattern(`\b(\d{4}-\d{1,2}-\d{1,2})\b`),
				Pattern(`\b(\d{1,2}[/.\-]\d{1,2}[/.\-]\d{4})\b`),
				Pattern(`(?i)\b(` + monthNames + `[ \t]+\d{1,2}(?:st|nd|rd|th)?,?[ \t]+\d{4})\b`),
				Pattern(`(?i)\b(\d{1,2}(?:st|nd|rd|th)?[ \t]+` + monthNames + `,?[ \t]+\d{4})\b`),
			},
			Normalize: dateNormalizer(cal),
		},
	}
}
