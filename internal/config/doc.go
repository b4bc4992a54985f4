// Package config provides configuration management for conductor.
//
// # Overview
//
// The config package uses Viper to load configuration from YAML files and
// environment variables. It provides a type-safe configuration structure with
// validation, default values, and automatic file creation.
//
// # Configuration File
//
// The configuration is stored at ~/.conductor/config.yaml and is created with
// defaults on first use. Providers are an ordered list; the catalog refresh
// walks them in that order, so earlier providers win id collisions.
//
//	llm:
//	  providers:
//	    - name: ollama
//	      type: ollama
//	      endpoint: http://127.0.0.1:11434
//	    - name: groq
//	      type: openai
//	      endpoint: https://api.groq.com/openai/v1
//	      pricing:
//	        - model: llama-3.3-70b-versatile
//	          cost_per_1k: 0.0006
//	router:
//	  active_model: ollama/llama3.2:3b
//	  auto_fallback: true
//
// # Environment Variables
//
// Scalar values can be overridden with the CONDUCTOR_ prefix. Nested fields
// are separated by underscores.
//
// Examples:
//   - CONDUCTOR_ROUTER_ACTIVE_MODEL=openai/gpt-4o-mini
//   - CONDUCTOR_ROUTER_PREFER_LOCAL=false
//   - CONDUCTOR_LOGGING_LEVEL=debug
//
// Provider API keys left empty in the file fall back to the conventional
// variables (OPENAI_API_KEY, ANTHROPIC_API_KEY, GROQ_API_KEY, ...), resolved
// by the llm package factory.
package config
