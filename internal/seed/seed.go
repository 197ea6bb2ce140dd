// Copyright (c) 2026 Offerdesk
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package seed loads a demo account and a handful of realistic commercial
// offer emails for development environments.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/offerdesk/parser/internal/models"
)

// Store is the subset of the email store seeding needs.
type Store interface {
	ListAccounts(ctx context.Context) ([]models.Account, error)
	CreateAccount(ctx context.Context, a *models.Account) (int64, error)
	CreateEmail(ctx context.Context, e *models.Email) (int64, error)
}

// Result reports what a seed run created.
type Result struct {
	Seeded          bool `json:"seeded"`
	AccountsCreated int  `json:"accounts_created"`
	EmailsCreated   int  `json:"emails_created"`
}

type sampleEmail struct {
	subject    string
	sender     string
	senderName string
	bodyText   string
	parsedData map[string]any
	status     models.EmailStatus
}

// Run inserts the demo account and sample emails. It is a no-op when any
// account already exists so a restarted dev environment is not re-seeded.
func Run(ctx context.Context, store Store) (*Result, error) {
	accounts, err := store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("check existing accounts: %w", err)
	}
	if len(accounts) > 0 {
		return &Result{Seeded: false}, nil
	}

	accountID, err := store.CreateAccount(ctx, &models.Account{
		Email:        "demo@example.com",
		DisplayName:  "Demo Inbox",
		AccessToken:  "demo_token",
		RefreshToken: "demo_refresh",
		TokenExpiry:  time.Now().UTC().Add(7 * 24 * time.Hour),
		IsActive:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create demo account: %w", err)
	}

	now := time.Now().UTC()
	created := 0
	for i, sample := range sampleEmails {
		email := &models.Email{
			AccountID:  accountID,
			MessageID:  fmt.Sprintf("msg_%d_%s", i, uuid.NewString()[:8]),
			Subject:    sample.subject,
			Sender:     sample.sender,
			SenderName: sample.senderName,
			BodyText:   sample.bodyText,
			ReceivedAt: now.Add(-time.Duration(i*3) * time.Hour),
			Status:     sample.status,
			ParsedData: sample.parsedData,
		}
		if sample.parsedData != nil {
			ts := now
			email.ParsedAt = &ts
		}
		if _, err := store.CreateEmail(ctx, email); err != nil {
			return nil, fmt.Errorf("create sample email %q: %w", sample.subject, err)
		}
		created++
	}

	slog.Info("seeded development data", "accounts", 1, "emails", created)
	return &Result{Seeded: true, AccountsCreated: 1, EmailsCreated: created}, nil
}

var sampleEmails = []sampleEmail{
	{
		subject:    "Partnership Opportunity - Tech Blog Network",
		sender:     "john@techblog.com",
		senderName: "John Smith",
		bodyText: `Hi there,

I'm reaching out from TechBlog Network, a collection of 15 technology-focused websites with a combined monthly readership of 2.5 million visitors.

We're interested in exploring a partnership opportunity with your website. Here's what we're proposing:

- Guest post exchange (2 posts per month each way)
- Link placement in relevant existing articles
- Sponsored content opportunities ($200 per article)

Our flagship site, techblog.com, has:
- Domain Authority: 58
- Monthly organic traffic: 850,000 visitors
- Primary audience: Tech professionals, developers

Let me know if you'd be interested in discussing this further.

Best regards,
John Smith
Partnerships Manager
TechBlog Network`,
		parsedData: map[string]any{
			"company_name": "TechBlog Network",
			"contact_email": "john@techblog.com",
			"contact_name":  "John Smith",
			"website_url":   "techblog.com",
			"offer_type":    "partnership",
			"price":         map[string]any{"amount": 200, "currency": "USD"},
			"description":   "Guest post exchange and sponsored content partnership",
			"metrics":       map[string]any{"monthly_traffic": "850,000", "domain_authority": 58},
		},
		status: models.StatusParsed,
	},
	{
		subject:    "Guest Post Offer - $150 per article",
		sender:     "marketing@seoagency.io",
		senderName: "SEO Agency Team",
		bodyText: `Hello,

We represent several clients looking for guest post placements on quality websites in your niche.

Offer details:
- $150 per published guest post
- High-quality, original content provided by us
- 1-2 contextual backlinks per article
- Quick turnaround (content ready within 48 hours)

We're looking for long-term partnerships and can guarantee 5-10 posts per month.

Website requirements:
- DA 30+
- Real traffic
- No spam history

Interested? Reply with your rates and guidelines.

Best,
Marketing Team
SEO Agency`,
		parsedData: map[string]any{
			"company_name":  "SEO Agency",
			"contact_email": "marketing@seoagency.io",
			"contact_name":  "Marketing Team",
			"offer_type":    "guest_post",
			"price":         map[string]any{"amount": 150, "currency": "USD"},
			"description":   "Guest post placement service offering $150 per article",
		},
		status: models.StatusReviewed,
	},
	{
		subject:    "Link Exchange Proposal - DA 45 Finance Site",
		sender:     "outreach@financesite.com",
		senderName: "Sarah Wilson",
		bodyText: `Hi,

I'm Sarah from FinanceSite.com. We're a personal finance blog with strong metrics:

- Domain Authority: 45
- Monthly visitors: 120,000
- Niche: Personal finance, investing, budgeting

I noticed your site covers similar topics and thought we could benefit from a link exchange.

Proposal:
- We add a contextual link to your site in one of our articles
- You add a link to us in a relevant post
- No money exchanged, pure value trade

Let me know if this interests you!

Sarah Wilson
Outreach Manager
FinanceSite.com`,
		parsedData: map[string]any{
			"company_name":  "FinanceSite.com",
			"contact_email": "outreach@financesite.com",
			"contact_name":  "Sarah Wilson",
			"website_url":   "financesite.com",
			"offer_type":    "link_exchange",
			"description":   "Reciprocal link exchange proposal",
			"metrics":       map[string]any{"monthly_traffic": "120,000", "domain_authority": 45},
		},
		status: models.StatusPending,
	},
	{
		subject:    "Website Acquisition Interest",
		sender:     "buyer@webflippers.com",
		senderName: "Mike Chen",
		bodyText: `Hello,

I'm a website investor and I'm interested in potentially acquiring your website.

Could you please share:
- Monthly revenue (last 6 months average)
- Traffic sources breakdown
- Monetization methods
- Your asking price or if you're open to offers

I've successfully acquired and grown 20+ websites in the past 3 years. Happy to provide references.

Looking forward to hearing from you.

Mike Chen
WebFlippers Investments`,
		parsedData: map[string]any{
			"company_name":  "WebFlippers Investments",
			"contact_email": "buyer@webflippers.com",
			"contact_name":  "Mike Chen",
			"offer_type":    "acquisition",
			"description":   "Website acquisition inquiry",
		},
		status: models.StatusPending,
	},
	{
		subject:    "Sponsored Content Opportunity - $500",
		sender:     "ads@brandpromo.net",
		senderName: "Brand Promo",
		bodyText: `Dear Website Owner,

We have a client in the SaaS space looking for sponsored content placements.

Budget: $500 for a single sponsored article
Requirements:
- 1000+ words
- 2 dofollow links
- Permanent placement
- Marked as sponsored/partner content

The article will be professionally written by our team and aligned with your site's tone.

Interested in proceeding?

Brand Promo Team`,
		status: models.StatusPending,
	},
}
