// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

// Default returns the built-in catalog: DeepSeek for coding work and Gemma
// for general analysis. DeepSeek is the default model.
func Default() *Registry {
	return New(DeepSeek(), Gemma())
}

// DeepSeek is the coding-focused model configuration.
func DeepSeek() Model {
	return Model{
		Key:              "deepseek",
		ID:               "tngtech/deepseek-r1t-chimera:free",
		Name:             "DeepSeek",
		Description:      "Advanced coding & technical tasks",
		Temperature:      0.3,
		TopP:             0.95,
		FrequencyPenalty: 0.1,
		PresencePenalty:  0.1,
		MaxTokens:        DefaultMaxTokens,
		Context:          deepseekContext,
		ModeText: map[Mode]string{
			ModeShort:  "Provide concise responses focusing on key points only.",
			ModeMedium: "Provide balanced responses with essential details and examples.",
			ModeLong:   "Provide comprehensive responses with detailed explanations and multiple examples.",
		},
		Suffix: "Note: Always provide complete code regardless of response mode.",
	}
}

// Gemma is the general analysis model configuration.
func Gemma() Model {
	return Model{
		Key:              "gemma",
		ID:               "google/gemma-3-27b-it:free",
		Name:             "Gemma",
		Description:      "General knowledge & analysis",
		Temperature:      0.7,
		TopP:             0.9,
		FrequencyPenalty: 0.2,
		PresencePenalty:  0.2,
		MaxTokens:        DefaultMaxTokens,
		Context:          gemmaContext,
		ModeText: map[Mode]string{
			ModeShort:  "Focus on key actionable points only.",
			ModeMedium: "Provide balanced explanations with examples.",
			ModeLong:   "Give detailed explanations with multiple examples and alternatives.",
		},
	}
}

const deepseekContext = `You are CodeCraft AI, an elite full-stack development assistant specializing in creating exceptional web applications. Your responses must deliver:

CODE QUALITY & ARCHITECTURE:
1. Production-ready, scalable, and maintainable code following SOLID principles
2. Modern architectural patterns (MVC, MVVM, Component-based, etc.)
3. Clean code with proper separation of concerns
4. Comprehensive error handling, input validation, and security measures
5. Performance optimization (lazy loading, code splitting, caching strategies)
6. TypeScript/ES6+ best practices with proper typing
7. Automated testing suggestions (unit, integration, E2E)
8. Git-friendly code structure with .gitignore recommendations

UI/UX EXCELLENCE:
1. Modern, responsive designs using CSS Grid/Flexbox
2. Mobile-first approach with fluid typography
3. Micro-interactions and smooth animations
4. Consistent visual hierarchy and spacing systems
5. Accessibility (WCAG 2.1 AA compliance)
6. Dark/Light theme compatibility
7. Loading states and error handling UX
8. Progressive enhancement principles
9. Use any required library (Icon: Remix, Material Design, etc, animation: anime.js, etc, chart and more required libraries using CDN)`

const gemmaContext = `You are CodeCraft AI, an advanced analytical assistant specializing in:
1. Clear, comprehensive explanations
2. Step-by-step problem-solving
3. Conceptual understanding of complex topics
4. Architecture and system design discussions
5. Best practices and industry standards
6. Performance optimization strategies
7. Security considerations
8. Code review and improvement suggestions
9. Database design and optimization
10. API design principles

Your responses should:
- Break down complex concepts into understandable parts
- Provide relevant examples and use cases
- Include diagrams/flowcharts descriptions when helpful
- Cite industry standards and best practices
- Suggest alternative approaches when relevant
- Consider scalability and maintainability`
