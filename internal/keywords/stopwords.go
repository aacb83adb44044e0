package keywords

// Korean particles, copulas and fillers.
var koreanStopWords = []string{
	"이", "가", "을", "를", "에", "의", "와", "과", "은", "는", "도", "로", "으로",
	"에서", "에게", "께", "한테", "더", "많이", "있다", "없다", "하다", "되다", "이다",
	"그", "그것", "이것", "저것", "그런", "이런", "저런", "그렇게", "이렇게", "저렇게",
	"때", "경우", "것", "수", "등", "및", "또한", "또", "그리고", "하지만", "그러나",
}

// English function words.
var englishStopWords = []string{
	"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for", "of", "with",
	"by", "from", "as", "is", "was", "are", "were", "been", "be", "have", "has", "had",
	"do", "does", "did", "will", "would", "should", "could", "may", "might", "must",
	"this", "that", "these", "those", "it", "its", "they", "them", "their", "there",
	"what", "which", "who", "when", "where", "why", "how", "can", "cannot",
}

func defaultStopWords() map[string]struct{} {
	m := make(map[string]struct{}, len(koreanStopWords)+len(englishStopWords))
	for _, w := range koreanStopWords {
		m[w] = struct{}{}
	}
	for _, w := range englishStopWords {
		m[w] = struct{}{}
	}
	return m
}
