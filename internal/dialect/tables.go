package dialect

// Media type codes shared by both dialects.
const (
	MediaBook     = "b"
	MediaScore    = "bc"
	MediaVideo    = "v"
	MediaAudio    = "a"
	MediaComputer = "c"
	MediaImage    = "i"
	MediaUnknown  = "u"
)

// Audience codes shared by both dialects.
const (
	AudienceJuvenile = "j"
	AudienceAdult    = "a"
	AudienceUnknown  = "u"
)

type source struct {
	tag  string
	code byte
}

// authorSource describes a personal name field. When given is zero the
// name is held in one "Surname, Given" subfield.
type authorSource struct {
	tag     string
	surname byte
	given   byte
	role    byte
}

type seriesSource struct {
	tag    string
	name   byte
	volume byte
	issn   byte
}

// position addresses one character of the leader, a control field or a
// data subfield.
type position struct {
	leader  bool
	control string
	tag     string
	code    byte
	offset  int
}

type table struct {
	isbn      []source
	price     []source
	title     source
	subtitle  source
	authors   []authorSource
	published []string
	place     byte
	publisher byte
	date      byte

	series     []seriesSource
	collection []seriesSource

	subject    []source
	keywords   []source
	abstract   []source
	notes      []source
	callNumber []source
	extent     []source
	language   []source

	languageFixed *position
	media         position
	mediaCodes    map[byte]string
	audience      position
	audienceCodes map[byte]string
}

var marc21Table = table{
	isbn:     []source{{"020", 'a'}},
	price:    []source{{"020", 'c'}},
	title:    source{"245", 'a'},
	subtitle: source{"245", 'b'},
	authors: []authorSource{
		{tag: "100", surname: 'a', role: '4'},
		{tag: "700", surname: 'a', role: '4'},
	},
	published: []string{"260", "264"},
	place:     'a',
	publisher: 'b',
	date:      'c',

	series: []seriesSource{
		{tag: "490", name: 'a', volume: 'v', issn: 'x'},
		{tag: "440", name: 'a', volume: 'v', issn: 'x'},
	},
	collection: []seriesSource{
		{tag: "830", name: 'a', volume: 'v', issn: 'x'},
	},

	subject:    []source{{"650", 'a'}},
	keywords:   []source{{"653", 'a'}},
	abstract:   []source{{"520", 'a'}},
	notes:      []source{{"500", 'a'}},
	callNumber: []source{{"082", 'a'}},
	extent:     []source{{"300", 'a'}},
	language:   []source{{"041", 'a'}},

	languageFixed: &position{control: "008", offset: 35},
	media:         position{leader: true, offset: 6},
	mediaCodes: map[byte]string{
		'a': MediaBook, 't': MediaBook,
		'c': MediaScore, 'd': MediaScore,
		'g': MediaVideo,
		'i': MediaAudio, 'j': MediaAudio,
		'm': MediaComputer,
		'k': MediaImage,
	},
	audience: position{control: "008", offset: 22},
	audienceCodes: map[byte]string{
		'a': AudienceJuvenile, 'b': AudienceJuvenile, 'c': AudienceJuvenile,
		'd': AudienceJuvenile, 'j': AudienceJuvenile,
		'e': AudienceAdult, 'f': AudienceAdult, 'g': AudienceAdult,
	},
}

var unimarcTable = table{
	isbn:     []source{{"010", 'a'}},
	price:    []source{{"010", 'd'}},
	title:    source{"200", 'a'},
	subtitle: source{"200", 'e'},
	authors: []authorSource{
		{tag: "700", surname: 'a', given: 'b', role: '4'},
		{tag: "701", surname: 'a', given: 'b', role: '4'},
		{tag: "702", surname: 'a', given: 'b', role: '4'},
	},
	published: []string{"210", "214"},
	place:     'a',
	publisher: 'c',
	date:      'd',

	series: []seriesSource{
		{tag: "225", name: 'a', volume: 'v', issn: 'x'},
	},
	collection: []seriesSource{
		{tag: "410", name: 't', volume: 'v', issn: 'x'},
	},

	subject:    []source{{"606", 'a'}},
	keywords:   []source{{"610", 'a'}},
	abstract:   []source{{"330", 'a'}},
	notes:      []source{{"300", 'a'}},
	callNumber: []source{{"676", 'a'}},
	extent:     []source{{"215", 'a'}},
	language:   []source{{"101", 'a'}},

	media: position{leader: true, offset: 6},
	mediaCodes: map[byte]string{
		'a': MediaBook, 'b': MediaBook,
		'c': MediaScore, 'd': MediaScore,
		'g': MediaVideo,
		'i': MediaAudio, 'j': MediaAudio,
		'l': MediaComputer,
		'k': MediaImage,
	},
	audience: position{tag: "100", code: 'a', offset: 17},
	audienceCodes: map[byte]string{
		'a': AudienceJuvenile, 'b': AudienceJuvenile, 'c': AudienceJuvenile,
		'd': AudienceJuvenile, 'e': AudienceJuvenile,
		'k': AudienceAdult, 'm': AudienceAdult,
	},
}

func tableFor(d Dialect) *table {
	switch d {
	case UNIMARC:
		return &unimarcTable
	default:
		return &marc21Table
	}
}
