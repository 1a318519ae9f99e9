package mural

import "time"

// QuoteInterval is how long each ticker line stays on the projection screen.
const QuoteInterval = 10 * time.Second

var quotes = []string{
	"A oração não muda Deus, mas muda quem ora. - C.S. Lewis",
	"Um pouco de amor em ação vale mais do que toneladas de teoria. - Spurgeon",
	"Deus usa pessoas comuns para coisas extraordinárias. - D.L. Moody",
	"A igreja existe para levar os homens a Cristo. - C.S. Lewis",
	"Pregue o Evangelho, se necessário use palavras. - S. Francisco",
	"Vós sois a luz do mundo. - Mateus 5:14",
	"Orai uns pelos outros. - Tiago 5:16",
	"Nisto todos conhecerão que sois meus discípulos. - João 13:35",
	"Ide e pregai o evangelho. - Marcos 16:15",
}

// Quotes returns the ticker lines, quotes first and then verses.
func Quotes() []string {
	return append([]string(nil), quotes...)
}

// QuoteAt picks the ticker line shown at t. Every screen showing the
// projection at the same moment shows the same line.
func QuoteAt(t time.Time) string {
	slot := t.Unix() / int64(QuoteInterval/time.Second)
	return quotes[int(slot%int64(len(quotes)))]
}
