package checker

import (
	"net/url"

	"github.com/aluiziolira/peterlang-checker/models"
	"github.com/aluiziolira/peterlang-checker/parser"
)

// SearchParam is the query parameter carrying the free-text search term.
const SearchParam = "searchstring"

// PlanQuery picks the search term for req: the ISBN, else "author title",
// else the title alone. It returns ErrNoValidInput when none apply.
func PlanQuery(req models.BookRequest, searchEndpoint string) (models.QueryPlan, error) {
	isbn := usableISBN(req.ISBN)
	author := parser.CleanCell(req.Author)
	title := parser.CleanCell(req.Title)

	var query string
	switch {
	case isbn != "":
		query = isbn
	case author != "" && title != "":
		query = author + " " + title
	case title != "":
		query = title
	default:
		return models.QueryPlan{}, ErrNoValidInput
	}

	return models.QueryPlan{
		Query:     query,
		SearchURL: searchEndpoint + "?" + SearchParam + "=" + url.QueryEscape(query),
	}, nil
}

func usableISBN(isbn string) string {
	if parser.IsMissing(isbn) {
		return ""
	}
	return parser.CleanCell(isbn)
}
