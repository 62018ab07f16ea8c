package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/rosescout/rosescout/orchestrate"
)

var orcidPattern = regexp.MustCompile(`^\d{4}-\d{4}-\d{4}-\d{3}[\dX]$`)

// ResearcherArgs are the named arguments for researcher-profile.
type ResearcherArgs struct {
	Identifier string `json:"identifier" jsonschema:"required,description=ORCID iD of the researcher (e.g. '0000-0002-1825-0097')"`
}

// ResearcherProfile is a simplified view of an ORCID record.
type ResearcherProfile struct {
	OrcidID      string        `json:"orcid_id"`
	Name         string        `json:"name"`
	Biography    string        `json:"biography,omitempty"`
	Keywords     []string      `json:"keywords,omitempty"`
	Emails       []string      `json:"emails,omitempty"`
	Publications []Publication `json:"publications,omitempty"`
}

// Publication is one work from the researcher's record.
type Publication struct {
	Title   string `json:"title"`
	Year    string `json:"year,omitempty"`
	Journal string `json:"journal,omitempty"`
}

const maxPublications = 10

type orcidClient struct {
	token   string
	baseURL string
	caller  *caller
}

func (o *orcidClient) headers() http.Header {
	header := http.Header{"Accept": {"application/vnd.orcid+json"}}
	if o.token != "" {
		header.Set("Authorization", "Bearer "+o.token)
	}
	return header
}

func (o *orcidClient) fetch(ctx context.Context, orcidID, endpoint string, out any) error {
	body, status, err := o.caller.doJSON(ctx, http.MethodGet, o.baseURL+"/"+orcidID+"/"+endpoint, o.headers(), nil)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: orcid: no record for %s", ErrNoResult, orcidID)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: orcid: status %d", ErrAuthMissing, status)
	case status != http.StatusOK:
		return fmt.Errorf("%w: orcid: status %d", ErrUpstream, status)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: orcid: %v", ErrUpstream, err)
	}
	return nil
}

type orcidPerson struct {
	Name struct {
		GivenNames struct {
			Value string `json:"value"`
		} `json:"given-names"`
		FamilyName struct {
			Value string `json:"value"`
		} `json:"family-name"`
	} `json:"name"`
	Biography struct {
		Content string `json:"content"`
	} `json:"biography"`
	Keywords struct {
		Keyword []struct {
			Content string `json:"content"`
		} `json:"keyword"`
	} `json:"keywords"`
	Emails struct {
		Email []struct {
			Email string `json:"email"`
		} `json:"email"`
	} `json:"emails"`
}

type orcidWorks struct {
	Group []struct {
		WorkSummary []struct {
			Title struct {
				Title struct {
					Value string `json:"value"`
				} `json:"title"`
			} `json:"title"`
			JournalTitle struct {
				Value string `json:"value"`
			} `json:"journal-title"`
			PublicationDate struct {
				Year struct {
					Value string `json:"value"`
				} `json:"year"`
			} `json:"publication-date"`
		} `json:"work-summary"`
	} `json:"group"`
}

func (o *orcidClient) profile(ctx context.Context, orcidID string) (ResearcherProfile, error) {
	if !orcidPattern.MatchString(orcidID) {
		return ResearcherProfile{}, fmt.Errorf("orcid: invalid identifier %q", orcidID)
	}

	var person orcidPerson
	if err := o.fetch(ctx, orcidID, "person", &person); err != nil {
		return ResearcherProfile{}, err
	}

	profile := ResearcherProfile{
		OrcidID:   orcidID,
		Name:      joinName(person.Name.GivenNames.Value, person.Name.FamilyName.Value),
		Biography: person.Biography.Content,
	}
	for _, keyword := range person.Keywords.Keyword {
		profile.Keywords = append(profile.Keywords, keyword.Content)
	}
	for _, email := range person.Emails.Email {
		profile.Emails = append(profile.Emails, email.Email)
	}

	// Works are best-effort: a profile without publications is still useful.
	var works orcidWorks
	if err := o.fetch(ctx, orcidID, "works", &works); err == nil {
		for _, group := range works.Group {
			if len(profile.Publications) >= maxPublications {
				break
			}
			if len(group.WorkSummary) == 0 {
				continue
			}
			summary := group.WorkSummary[0]
			profile.Publications = append(profile.Publications, Publication{
				Title:   summary.Title.Title.Value,
				Year:    summary.PublicationDate.Year.Value,
				Journal: summary.JournalTitle.Value,
			})
		}
	}
	return profile, nil
}

func joinName(given, family string) string {
	switch {
	case given == "":
		return family
	case family == "":
		return given
	default:
		return given + " " + family
	}
}

type researcherAdapter struct {
	clients *Clients
}

func (a researcherAdapter) Definition() orchestrate.Definition {
	return orchestrate.Definition{
		Name:        CapabilityResearcher,
		Description: "Look up a researcher's public ORCID profile: name, biography, keywords and recent publications.",
		InputSchema: schemaFor(&ResearcherArgs{}),
	}
}

func (a researcherAdapter) Invoke(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args ResearcherArgs
	if err := decodeArgs(input, &args); err != nil {
		return nil, err
	}
	profile, err := a.clients.orcidTools().profile(ctx, args.Identifier)
	if err != nil {
		return nil, err
	}
	return json.Marshal(profile)
}
