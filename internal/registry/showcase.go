// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

// Example is a canned prompt offered on an empty chat.
type Example struct {
	Title       string
	Description string
	Prompt      string
}

// Showcase groups the example prompts for one model.
type Showcase struct {
	Heading  string
	Summary  string
	Examples []Example
}

// Examples returns the showcase for the model key. Models without one get
// a zero Showcase.
func Examples(key string) Showcase {
	return showcases[key]
}

var showcases = map[string]Showcase{
	"deepseek": {
		Heading: "Create Something Amazing",
		Summary: "Specialized in creating polished web applications with modern UI/UX, animations, and robust functionality. Pick one and preview the result.",
		Examples: []Example{
			{
				Title:       "Modern Landing",
				Description: "Premium SaaS landing page",
				Prompt: `Create a modern SaaS landing page with these features:

Hero Section:
- Animated gradient background with floating elements
- Large heading with gradient text and typing animation
- Transparent navbar with blur effect
- CTA button with hover animation

Feature Section:
- 3x3 feature grid with hover cards
- Smooth reveal animations on scroll

Pricing Section:
- 3 pricing tiers with a popular tag
- Feature comparison list with animated checkmarks

Testimonials and Newsletter:
- Customer review carousel
- Floating label inputs with success/error animations

Colors & Style:
- Primary: #4F46E5 (indigo), Accent: #9333EA (purple)
- Glass effects, modern sans-serif typography
- Responsive on all devices

Deliver in a single HTML file with internal CSS/JS.
Use only Font Awesome CDN for icons.`,
			},
			{
				Title:       "Magic Portfolio",
				Description: "Stunning single-page portfolio",
				Prompt: `Create a stunning single-page portfolio with:

- Hero section with particle text animation
- Floating project cards with 3D hover effect
- Skills section with animated progress bars
- Contact form with floating labels
- Modern glassmorphism design with gradient backgrounds
- Light/dark mode toggle, mobile-first layout

Keep everything in a single HTML file using internal CSS/JS.
Use minimal external resources (only Font Awesome CDN).`,
			},
			{
				Title:       "Modern E-commerce",
				Description: "Luxury fashion store homepage",
				Prompt: `Create a luxury fashion e-commerce homepage:

1. Sticky navigation with category mega menu, search and cart count
2. Full-width hero with a featured product and 3D tilt
3. 2x3 grid of trending items with quick view and add-to-cart animation
4. Four category tiles with zoom on hover
5. Features bar: free shipping, money-back guarantee, 24/7 support
6. Newsletter signup with success animation

Single HTML file with internal CSS/JS.`,
			},
			{
				Title:       "Arcade Game",
				Description: "Interactive retro-style game",
				Prompt: `Create a modern arcade game with:

Key Features:
- HTML5 Canvas-based retro game
- Player movement & collision system
- Enemy AI with dynamic patterns
- Score, health and high score tracking
- Touch & keyboard controls
- Power-ups & particle effects

Visuals:
- Neon retro pixel art style
- Parallax background layers
- Minimal HUD, mobile responsive

Pure HTML/CSS/JS only. Focus on polished gameplay and smooth controls.`,
			},
		},
	},
	"gemma": {
		Heading: "Personal Growth & Insights",
		Summary: "An empathetic guide for personal development, helping you explore self-awareness, transform limiting beliefs, and discover your authentic path.",
		Examples: []Example{
			{
				Title:       "Self Discovery Journey",
				Description: "Uncover your authentic self through guided reflection.",
				Prompt:      "I want to uncover the masks and roles I'm playing, the illusions I'm believing. Please guide me through the process by asking reflective questions one at a time. After our discussion, analyze my responses and provide actionable steps for authentic growth.",
			},
			{
				Title:       "Inner Growth Work",
				Description: "Transform limiting beliefs and develop empowering mindsets.",
				Prompt:      "Help me identify and transform my limiting beliefs. Guide me through a process of understanding where these beliefs come from, how they're affecting my life, and what new empowering beliefs I can cultivate.",
			},
			{
				Title:       "Life Purpose Clarity",
				Description: "Find clarity in your life direction.",
				Prompt:      "I feel disconnected from my true purpose. Help me explore my values, passions, and fears through reflective questions. Guide me to understand what truly matters to me and how to align my life with my authentic self.",
			},
			{
				Title:       "Sleep Cycle Reset",
				Description: "Fix your sleep schedule naturally",
				Prompt: `Create a sleep optimization plan:

1. Sleep Analysis: circadian rhythm overview, common disruption factors
2. Reset Strategy: light exposure timing, temperature, exercise, nutrition, stress
3. Implementation: daily schedule template, environment setup, progress tracking
4. Maintenance: habit formation, travel adaptation, emergency backup plans

Provide actionable, science-based solutions.`,
			},
		},
	},
}
