package relevance

import "newsradar/internal/core"

// ArticleScorable adapts core.Article to the Scorable interface this
// package's prefilter and classifier operate on.
type ArticleScorable struct {
	Title   string
	Content string
}

func (a ArticleScorable) GetTitle() string   { return a.Title }
func (a ArticleScorable) GetContent() string { return a.Content }

// FromArticle builds a Scorable view of an article.
func FromArticle(a core.Article) ArticleScorable {
	return ArticleScorable{Title: a.Title, Content: a.Content}
}
