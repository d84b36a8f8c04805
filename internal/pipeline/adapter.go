package pipeline

import (
	"fmt"

	"github.com/pressworks/disseminator/internal/config"
	"github.com/pressworks/disseminator/internal/eligibility"
	"github.com/pressworks/disseminator/internal/export"
	"github.com/pressworks/disseminator/internal/model"
	"github.com/pressworks/disseminator/internal/packaging"
	"github.com/pressworks/disseminator/internal/platforms"
	"github.com/pressworks/disseminator/internal/secrets"
)

// Adapter binds one platform's policies together: its eligibility rules,
// its metadata transform, its packaging spec, and its transport client.
type Adapter struct {
	Platform  Platform
	Rules     eligibility.RuleSet
	Transform export.TransformFunc
	Spec      packaging.BuildSpec
	Client    platforms.Client
}

// BuildAdapter assembles the adapter for a platform. Platform-wide
// credentials are resolved here so a missing secret fails before any
// registry or content traffic; per-publisher values resolve at delivery
// time once the work's publisher is known.
func BuildAdapter(cfg *config.Config, store *secrets.Store, platform Platform) (*Adapter, error) {
	switch platform {
	case OpenArchive:
		access, secret, err := store.KeyPair(string(OpenArchive))
		if err != nil {
			return nil, err
		}
		client, err := platforms.NewObjectStore(
			cfg.OpenArchiveEndpoint, cfg.OpenArchiveRegion, cfg.OpenArchiveBucket,
			cfg.OpenArchiveBaseURL, cfg.OpenArchiveUseSSL, cfg.OpenArchiveForce,
			access, secret)
		if err != nil {
			return nil, err
		}
		return &Adapter{
			Platform: OpenArchive,
			Rules: eligibility.RuleSet{Platform: string(OpenArchive), Rules: []eligibility.Rule{
				eligibility.RequireLicence(),
				eligibility.RequireContributor(),
				eligibility.RequireCoverURL(),
				eligibility.RequirePublication(model.FormatPDF),
				eligibility.RequireISBN(model.FormatPaperback, model.FormatPDF),
			}},
			Transform: export.DescriptiveCSV,
			Spec: packaging.BuildSpec{
				Platform: string(OpenArchive),
				Shape:    packaging.ShapeFlat,
				Naming: packaging.NamingPolicy{
					ISBNPreference: []model.PublicationFormat{model.FormatPaperback, model.FormatPDF},
				},
				Formats:      []model.PublicationFormat{model.FormatPDF},
				IncludeCover: true,
			},
			Client: client,
		}, nil

	case BookStream:
		user, pass, err := store.BasicAuth(string(BookStream), "")
		if err != nil {
			return nil, err
		}
		client := platforms.NewSFTPDepot(
			cfg.BookStreamHost, cfg.BookStreamPort, user, pass,
			cfg.BookStreamRootDir, cfg.TransportRetries, cfg.RetryBaseDelay)
		return &Adapter{
			Platform: BookStream,
			Rules: eligibility.RuleSet{Platform: string(BookStream), Rules: []eligibility.Rule{
				eligibility.RequireLicence(),
				eligibility.RequireAbstract(),
				eligibility.RequireCoverURL(),
				eligibility.RequirePublication(model.FormatPDF, model.FormatEPUB),
				eligibility.RequireISBN(model.FormatPDF, model.FormatEPUB),
			}},
			Transform: export.BibliographicXML,
			Spec: packaging.BuildSpec{
				Platform: string(BookStream),
				Shape:    packaging.ShapeArchive,
				Naming: packaging.NamingPolicy{
					ISBNPreference: []model.PublicationFormat{model.FormatPDF, model.FormatEPUB},
				},
				Formats:      []model.PublicationFormat{model.FormatPDF, model.FormatEPUB},
				IncludeCover: true,
			},
			Client: client,
		}, nil

	case ScholarDeposit:
		user, pass, err := store.BasicAuth(string(ScholarDeposit), "")
		if err != nil {
			return nil, err
		}
		client := platforms.NewSwordDeposit(
			cfg.ScholarDepositURL, user, pass,
			cfg.TransportRetries, cfg.RetryBaseDelay)
		return &Adapter{
			Platform: ScholarDeposit,
			Rules: eligibility.RuleSet{Platform: string(ScholarDeposit), Rules: []eligibility.Rule{
				eligibility.RequireLicence(),
				eligibility.RequireAbstract(),
				eligibility.RequireContributor(),
				eligibility.RequirePublication(model.FormatPDF),
			}},
			Transform: export.DepositEntry,
			Spec: packaging.BuildSpec{
				Platform: string(ScholarDeposit),
				Shape:    packaging.ShapeMultipart,
				Naming: packaging.NamingPolicy{
					ISBNPreference: []model.PublicationFormat{model.FormatPDF},
					UseWorkID:      true,
				},
				Formats: []model.PublicationFormat{model.FormatPDF},
			},
			Client: client,
		}, nil

	case ResearchVault:
		token, err := store.Token(string(ResearchVault))
		if err != nil {
			return nil, err
		}
		client := platforms.NewRestVault(
			cfg.ResearchVaultURL, token,
			cfg.TransportRetries, cfg.RetryBaseDelay)
		return &Adapter{
			Platform: ResearchVault,
			Rules: eligibility.RuleSet{Platform: string(ResearchVault), Rules: []eligibility.Rule{
				eligibility.RequireLicence(),
				eligibility.RequireAbstract(),
				eligibility.RequireContributor(),
				eligibility.RequireSubjectType("KEYWORD"),
				eligibility.RequirePublication(model.FormatPDF),
			}},
			Transform: export.DescriptiveCSV,
			Spec: packaging.BuildSpec{
				Platform: string(ResearchVault),
				Shape:    packaging.ShapeFlat,
				Naming: packaging.NamingPolicy{
					ISBNPreference: []model.PublicationFormat{model.FormatPDF},
					UseWorkID:      true,
				},
				Formats: []model.PublicationFormat{model.FormatPDF},
			},
			Client: client,
		}, nil

	case CrawlDirect:
		access, secret, err := store.KeyPair(string(CrawlDirect))
		if err != nil {
			return nil, err
		}
		client, err := platforms.NewCrawlBucket(
			cfg.CrawlDirectEndpoint, cfg.CrawlDirectBucket, string(CrawlDirect),
			cfg.CrawlDirectUseSSL, access, secret, store)
		if err != nil {
			return nil, err
		}
		return &Adapter{
			Platform: CrawlDirect,
			Rules: eligibility.RuleSet{Platform: string(CrawlDirect), Rules: []eligibility.Rule{
				eligibility.RequireLicence(),
				eligibility.RequireContributor(),
				eligibility.RequirePublication(model.FormatPDF, model.FormatEPUB),
				eligibility.RequireISBN(model.FormatPDF, model.FormatEPUB),
			}},
			Transform: export.BibliographicXML,
			Spec: packaging.BuildSpec{
				Platform: string(CrawlDirect),
				Shape:    packaging.ShapeFlat,
				Naming: packaging.NamingPolicy{
					ISBNPreference: []model.PublicationFormat{model.FormatPDF, model.FormatEPUB},
					Metadata:       packaging.MetadataPublisherDated,
				},
				Formats: []model.PublicationFormat{model.FormatPDF, model.FormatEPUB},
			},
			Client: client,
		}, nil

	default:
		return nil, fmt.Errorf("unknown platform %q", platform)
	}
}
